package engine

import "time"

// Config holds the Orchestrator's policy knobs, the subset of
// spec.md §6's CLI surface that shapes engine behavior rather than
// the adapter (which gets its own target.Config).
type Config struct {
	Domain      string
	Equal       bool
	SkipGuessed bool
	Analyze     bool
	Pause       bool
	NoWait      bool
	PollTimeout time.Duration
	Batching    Batching
}

// pollPeriod returns the poll-wait sleep: the configured interval if
// bounded, else the fixed one-minute default of spec.md §4.7.
func (c Config) pollPeriod() time.Duration {
	if c.Batching.Bounded() {
		return c.Batching.Interval()
	}
	return defaultPollPeriod
}
