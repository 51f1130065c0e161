package models

import (
	"fmt"
	"strings"
)

// BuildCallback encodes an outcome action as "<outcome>_<signalID>_<symbol>".
func BuildCallback(outcome SignalStatus, signalID, symbol string) string {
	return string(outcome) + "_" + signalID + "_" + symbol
}

// SignalActions returns one action per outcome for the signal.
func SignalActions(signalID, symbol string) []SignalAction {
	out := make([]SignalAction, 0, len(Outcomes))
	for _, o := range Outcomes {
		out = append(out, SignalAction{Outcome: o, Callback: BuildCallback(o, signalID, symbol)})
	}
	return out
}

// Callback is a decoded outcome action.
type Callback struct {
	Outcome  SignalStatus
	SignalID string
	Symbol   string
}

// ParseCallback decodes an action built by BuildCallback. Signal ids never contain
// an underscore, so everything after the second separator is the symbol.
func ParseCallback(data string) (Callback, error) {
	parts := strings.SplitN(strings.TrimSpace(data), "_", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Callback{}, fmt.Errorf("%w: %q", ErrInvalidCallback, data)
	}
	o, err := ParseOutcome(parts[0])
	if err != nil {
		return Callback{}, err
	}
	return Callback{Outcome: o, SignalID: parts[1], Symbol: parts[2]}, nil
}
