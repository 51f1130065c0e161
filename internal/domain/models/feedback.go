package models

// OutcomeCounts counts signals by status.
type OutcomeCounts struct {
	Active  int `json:"active"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
	Partial int `json:"partial"`
}

// Add counts one signal with status s.
func (c *OutcomeCounts) Add(s SignalStatus, n int) {
	switch s {
	case StatusActive:
		c.Active += n
	case StatusSuccess:
		c.Success += n
	case StatusFail:
		c.Fail += n
	case StatusPartial:
		c.Partial += n
	}
}

// Terminal is the number of signals with an outcome.
func (c OutcomeCounts) Terminal() int { return c.Success + c.Fail + c.Partial }

// SuccessRate is success over terminal signals; 0 without terminal signals.
func (c OutcomeCounts) SuccessRate() float64 {
	t := c.Terminal()
	if t == 0 {
		return 0
	}
	return float64(c.Success) / float64(t)
}

// FeedbackStats aggregates signal outcomes over a lookback window.
type FeedbackStats struct {
	LookbackDays int                               `json:"lookback_days"`
	Totals       OutcomeCounts                     `json:"totals"`
	BySource     map[DiscoverySource]OutcomeCounts `json:"by_source"`
	NewCoin      OutcomeCounts                     `json:"new_coin"`
	Established  OutcomeCounts                     `json:"established"`
}

// NewFeedbackStats returns empty stats for the window.
func NewFeedbackStats(lookbackDays int) FeedbackStats {
	return FeedbackStats{LookbackDays: lookbackDays, BySource: make(map[DiscoverySource]OutcomeCounts)}
}

// Add counts n signals with the given attributes.
func (s *FeedbackStats) Add(src DiscoverySource, isNew bool, status SignalStatus, n int) {
	s.Totals.Add(status, n)
	bySrc := s.BySource[src]
	bySrc.Add(status, n)
	s.BySource[src] = bySrc
	if isNew {
		s.NewCoin.Add(status, n)
	} else {
		s.Established.Add(status, n)
	}
}
