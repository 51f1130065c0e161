package models

import (
	"fmt"
	"strings"
	"time"
)

// SignalStatus is the lifecycle state of a signal. Every status but active is terminal.
type SignalStatus string

const (
	StatusActive  SignalStatus = "active"
	StatusSuccess SignalStatus = "success"
	StatusFail    SignalStatus = "fail"
	StatusPartial SignalStatus = "partial"
)

// Outcomes lists the terminal statuses feedback may report.
var Outcomes = []SignalStatus{StatusSuccess, StatusFail, StatusPartial}

// IsTerminal reports whether no further transitions are allowed.
func (s SignalStatus) IsTerminal() bool { return s != StatusActive }

// IsOutcome reports whether s is a valid feedback outcome.
func (s SignalStatus) IsOutcome() bool {
	return s == StatusSuccess || s == StatusFail || s == StatusPartial
}

// Transition returns the status after applying outcome to s.
func (s SignalStatus) Transition(outcome SignalStatus) (SignalStatus, error) {
	if !outcome.IsOutcome() {
		return s, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: status %s", ErrSignalClosed, s)
	}
	return outcome, nil
}

// ParseOutcome parses a feedback outcome, case-insensitively.
func ParseOutcome(s string) (SignalStatus, error) {
	o := SignalStatus(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsOutcome() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return o, nil
}

// SignalType distinguishes automatically emitted signals from manual ones.
type SignalType string

const (
	SignalTypeAuto   SignalType = "AUTO"
	SignalTypeManual SignalType = "MANUAL"
)

// Signal is a surfaced candidate with a tracked outcome.
type Signal struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Score           float64         `json:"score"`
	Price           float64         `json:"price"`
	DiscoverySource DiscoverySource `json:"discovery_source"`
	IsNew           bool            `json:"is_new"`
	BonusApplied    float64         `json:"bonus_applied"`
	Type            SignalType      `json:"type"`
	Status          SignalStatus    `json:"status"`
	Analysis        []string        `json:"analysis,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	FeedbackAt      *time.Time      `json:"feedback_at,omitempty"`
}

// SignalFilter narrows signal listings. Zero values mean no filter.
type SignalFilter struct {
	Status SignalStatus
	Symbol string
	Limit  int
}

// SignalAction is an opaque outcome-reporting action attached to a notification.
type SignalAction struct {
	Outcome  SignalStatus `json:"outcome"`
	Callback string       `json:"callback"`
}

// SignalEvent is what the notification sink receives for an emitted signal.
type SignalEvent struct {
	Signal    Signal         `json:"signal"`
	Result    ScoreResult    `json:"result"`
	Actions   []SignalAction `json:"actions"`
	PriceText string         `json:"price_text"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// FeedbackEvent is an outcome report arriving from outside.
// Either SignalID+Outcome or Callback must be set.
type FeedbackEvent struct {
	SignalID string `json:"signal_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Callback string `json:"callback,omitempty"`
	Comment  string `json:"comment,omitempty"`
}
