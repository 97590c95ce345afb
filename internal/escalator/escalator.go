// Package escalator implements the Timeout Escalator (spec.md §4.4): a
// three-stage backoff ladder driven purely by consecutive transport
// timeouts.
package escalator

import (
	"context"
	"time"
)

// Stage is the current position on the 0→1→2→0 ladder.
type Stage int

const (
	StageNormal Stage = iota
	StageBackoff
	StageStopped
)

// Threshold is the number of consecutive timeouts that fires an
// escalation. Fixed at 5 per spec.md §4.4.
const Threshold = 5

const (
	firstPause  = 5 * time.Minute
	secondPause = 10 * time.Minute
)

// Event identifies what the escalator asks the caller to do on firing,
// so the caller (the Orchestrator) can emit notifications and prompt
// for confirmation without the escalator importing a notifier.
type Event int

const (
	// EventNone means the escalator did not fire this call.
	EventNone Event = iota
	// EventWarning is stage 0→1: emit TIMEOUT_WARNING, sleep 5 minutes.
	EventWarning
	// EventSilentBackoff is stage 1→2: sleep 10 minutes, no notification.
	EventSilentBackoff
	// EventStoppedAwaitConfirm is stage 2→0: emit TIMEOUT_STOPPED and
	// block for human confirmation before resuming.
	EventStoppedAwaitConfirm
)

// Sleeper abstracts time.Sleep so tests never actually wait 5/10
// minutes; Fire's confirm argument abstracts the human confirmation
// prompt.
type Sleeper func(ctx context.Context, d time.Duration)

// Escalator tracks consecutive timeouts and the current backoff stage.
type Escalator struct {
	stage               Stage
	consecutiveTimeouts int
	sleep               Sleeper
}

// New returns an Escalator using the real clock.
func New() *Escalator {
	return &Escalator{sleep: realSleep}
}

// NewWithSleeper returns an Escalator with an injected sleep function,
// for tests.
func NewWithSleeper(sleep Sleeper) *Escalator {
	return &Escalator{sleep: sleep}
}

func realSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Stage returns the current backoff stage.
func (e *Escalator) Stage() Stage { return e.stage }

// ConsecutiveTimeouts returns the current consecutive-timeout count.
func (e *Escalator) ConsecutiveTimeouts() int { return e.consecutiveTimeouts }

// ObserveTimeout records a timed-out attempt and reports whether an
// escalation should fire. The caller must invoke Fire(ctx, event,
// confirm) for the returned event when it is not EventNone.
func (e *Escalator) ObserveTimeout() Event {
	e.consecutiveTimeouts++
	if e.consecutiveTimeouts < Threshold {
		return EventNone
	}

	switch e.stage {
	case StageNormal:
		return EventWarning
	case StageBackoff:
		return EventSilentBackoff
	default: // StageStopped
		return EventStoppedAwaitConfirm
	}
}

// ObserveResponse resets the consecutive-timeout count on any
// non-timeout response, per spec.md §4.4.
func (e *Escalator) ObserveResponse() {
	e.consecutiveTimeouts = 0
}

// Fire executes the side effects of an escalation event (sleeping the
// appropriate duration, or blocking on confirm for the stop stage) and
// advances the stage. confirm is called only for
// EventStoppedAwaitConfirm and should block until the human responds;
// it returns whether to resume. The "→0" transition requires that
// human confirmation per spec.md invariant 4.
func (e *Escalator) Fire(ctx context.Context, event Event, confirm func() bool) {
	defer func() { e.consecutiveTimeouts = 0 }()

	switch event {
	case EventWarning:
		e.sleep(ctx, firstPause)
		e.stage = StageBackoff
	case EventSilentBackoff:
		e.sleep(ctx, secondPause)
		e.stage = StageStopped
	case EventStoppedAwaitConfirm:
		if confirm != nil {
			confirm()
		}
		e.stage = StageNormal
	}
}
