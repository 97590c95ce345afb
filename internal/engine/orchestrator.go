package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crlsmrls/lowandslow/metrics"

	"github.com/crlsmrls/lowandslow/internal/analyzer"
	"github.com/crlsmrls/lowandslow/internal/attemptlog"
	"github.com/crlsmrls/lowandslow/internal/escalator"
	"github.com/crlsmrls/lowandslow/internal/notify"
	"github.com/crlsmrls/lowandslow/internal/pacing"
	"github.com/crlsmrls/lowandslow/internal/target"
	"github.com/crlsmrls/lowandslow/internal/watcher"
)

// defaultPollPeriod is the poll-wait sleep used once the queue drains
// and no interval is configured, per spec.md §4.7.
const defaultPollPeriod = time.Minute

// Confirm blocks for a human yes/no answer. It backs both the
// escalator's stage-2 recovery prompt and the interval-pause prompt
// on new hits.
type Confirm func(prompt string) bool

// AlwaysConfirm is a Confirm that always answers yes, suitable for
// non-interactive runs that never set --pause.
func AlwaysConfirm(string) bool { return true }

// Orchestrator is the Orchestrator (C8): it owns the work queue and
// drives every other component to spec.md §4.7's procedure.
type Orchestrator struct {
	Adapter   target.Adapter
	Log       *attemptlog.Log
	Gate      *pacing.Gate
	Escalator *escalator.Escalator
	Notifier  notify.Notifier
	Webhook   string
	Host      string
	Out       io.Writer
	Logger    zerolog.Logger
	Confirm   Confirm

	// Module labels the spray_attempts_total metric; it has no effect
	// on engine behavior.
	Module string

	Config Config

	UserPath  string
	PassPath  string
	Usernames []string
	Passwords []string

	queue         []Pair
	completed     map[Pair]struct{}
	guessed       map[string]struct{}
	userHash      string
	passHash      string
	loginAttempts int
	prevHitCount  int
	firstAttempt  bool
	waitingSent   bool

	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot is the read-only engine state a status server (C12) can
// safely publish over HTTP: counts only, never credentials.
type Snapshot struct {
	QueueDepth          int `json:"queue_depth"`
	BackoffStage        int `json:"backoff_stage"`
	ConsecutiveTimeouts int `json:"consecutive_timeouts"`
	AnalyzerHits        int `json:"analyzer_hits"`
	LoginAttempts       int `json:"login_attempts"`
}

// Snapshot returns the current engine state. Safe for concurrent use
// from a status server goroutine while Run drives the engine.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

func (o *Orchestrator) updateSnapshot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = Snapshot{
		QueueDepth:          len(o.queue),
		BackoffStage:        int(o.Escalator.Stage()),
		ConsecutiveTimeouts: o.Escalator.ConsecutiveTimeouts(),
		AnalyzerHits:        o.prevHitCount,
		LoginAttempts:       o.loginAttempts,
	}
}

// Run executes startup, the main attempt loop, interval pauses, and
// termination, returning when the queue is exhausted under --no-wait,
// poll-wait times out, or ctx is cancelled. Cancellation (spec.md §5)
// never aborts an in-flight attempt; it only stops new ones from
// starting and suppresses further notifications.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Confirm == nil {
		o.Confirm = AlwaysConfirm
	}
	o.completed = make(map[Pair]struct{})
	if prior, err := attemptlog.DeriveCompleted(o.Log.Path(), o.Logger); err == nil {
		o.completed = prior
	} else {
		o.Logger.Warn().Err(err).Msg("failed to derive completed attempts from log; starting fresh")
	}
	o.guessed = make(map[string]struct{})
	o.firstAttempt = true

	o.userHash, _ = watcher.HashFile(o.UserPath)
	o.passHash, _ = watcher.HashFile(o.PassPath)

	if o.Config.Equal {
		if err := o.runEqualPrePass(ctx); err != nil {
			return err
		}
	}

	o.queue = BuildQueue(o.Usernames, o.Passwords, o.Config.Domain, o.completed, o.guessed, o.Config.SkipGuessed)
	metrics.SetQueueDepth(len(o.queue))
	o.updateSnapshot()
	if len(o.queue) == 0 && len(o.Passwords) > 0 && o.Config.NoWait {
		return errors.New("engine: work queue is empty and --no-wait is set")
	}

	for {
		done, err := o.drainQueue(ctx)
		if err != nil || done {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		exit, err := o.terminate(ctx)
		if err != nil || exit {
			return err
		}
		// Queue grew during poll-wait; loop back into drainQueue.
	}
}

// runEqualPrePass attempts (user, local_part(user)) for every
// username before the main queue, per spec.md §4.7 step 2.
func (o *Orchestrator) runEqualPrePass(ctx context.Context) error {
	for _, raw := range o.Usernames {
		if ctx.Err() != nil {
			return nil
		}
		qualified := QualifyUsername(raw, o.Config.Domain)
		password := localPart(raw)
		pair := Pair{Username: qualified, Password: password}
		if _, done := o.completed[pair]; done {
			continue
		}
		executed, err := o.attempt(ctx, pair)
		if err != nil {
			return err
		}
		if !executed {
			return nil
		}
	}
	return nil
}

// localPart strips a trailing @domain from a username, per spec.md
// §4.7 step 2.
func localPart(user string) string {
	if idx := strings.LastIndex(user, "@"); idx != -1 {
		return user[:idx]
	}
	return user
}

// drainQueue runs the main attempt loop (spec.md §4.7 main loop) until
// the queue is exhausted, an interval pause asks to stop, or ctx is
// cancelled. done=true signals Run should return immediately (cancel,
// or a pause-prompt "no").
func (o *Orchestrator) drainQueue(ctx context.Context) (done bool, err error) {
	for len(o.queue) > 0 {
		if ctx.Err() != nil {
			return true, nil
		}

		pair := o.queue[0]
		o.queue = o.queue[1:]
		metrics.SetQueueDepth(len(o.queue))
		o.updateSnapshot()

		if o.Config.SkipGuessed {
			if _, ok := o.guessed[pair.Username]; ok {
				continue
			}
		}

		executed, err := o.attempt(ctx, pair)
		if err != nil {
			return true, err
		}
		if !executed {
			// Cancelled while waiting on the pacing gate; the pair was
			// never attempted, so leave it unlogged for the next run.
			return true, nil
		}

		o.loginAttempts++
		o.updateSnapshot()
		if o.Config.Batching.Bounded() && o.loginAttempts >= o.Config.Batching.BatchSize(len(o.Usernames)) {
			stop, err := o.intervalPause(ctx)
			if err != nil || stop {
				return true, err
			}
			o.loginAttempts = 0
		}
	}
	return false, nil
}

// attempt performs exactly one credential pair: pacing, login,
// escalation, logging/printing, and Completed Set bookkeeping. It
// never marks a pair complete on an adapter exception other than
// timeout, so a subsequent run retries it (spec.md §7).
func (o *Orchestrator) attempt(ctx context.Context, pair Pair) (executed bool, err error) {
	if !o.firstAttempt {
		if waitErr := o.Gate.Wait(ctx); waitErr != nil {
			return false, nil
		}
	}
	o.firstAttempt = false

	resp, loginErr := o.Adapter.Login(context.WithoutCancel(ctx), pair.Username, pair.Password)
	switch {
	case errors.Is(loginErr, target.ErrTimeout):
		o.Adapter.LogAttempt(o.Log, resp)
		o.completed[pair] = struct{}{}
		metrics.RecordAttempt(o.Module, "timeout")
		if ev := o.Escalator.ObserveTimeout(); ev != escalator.EventNone {
			metrics.SetBackoffStage(int(o.Escalator.Stage()))
			o.updateSnapshot()
			o.fireEscalation(ctx, ev)
		}
		return true, nil
	case loginErr != nil:
		o.Logger.Warn().Err(loginErr).Str("username", pair.Username).Msg("adapter login failed; pair will be retried")
		return true, nil
	default:
		o.Adapter.LogAttempt(o.Log, resp)
		o.Adapter.PrintResponse(o.Out, resp)
		o.completed[pair] = struct{}{}
		o.Escalator.ObserveResponse()
		metrics.SetBackoffStage(int(o.Escalator.Stage()))
		metrics.RecordAttempt(o.Module, "success")
		o.updateSnapshot()
		return true, nil
	}
}

func (o *Orchestrator) fireEscalation(ctx context.Context, ev escalator.Event) {
	switch ev {
	case escalator.EventWarning:
		o.notify(ctx, notify.TimeoutWarning)
	case escalator.EventStoppedAwaitConfirm:
		o.notify(ctx, notify.TimeoutStopped)
	}
	confirm := func() bool { return o.Confirm("Repeated timeouts. Continue spraying?") }
	o.Escalator.Fire(ctx, ev, confirm)
}

// intervalPause runs the Analyzer (if enabled), refreshes input files,
// and sleeps, per spec.md §4.7's interval-pause procedure. stop=true
// means the caller must return: either a pause-prompt "no" answer
// (SPRAY_COMPLETE has already been emitted here) or ctx was cancelled
// during the sleep.
func (o *Orchestrator) intervalPause(ctx context.Context) (stop bool, err error) {
	if o.Config.Analyze {
		newHits, err := o.runAnalyzer()
		if err != nil {
			o.Logger.Warn().Err(err).Msg("analyzer pass failed")
		} else if newHits && o.Config.Pause {
			if !o.Confirm("New potential credentials found. Continue spraying?") {
				o.notify(ctx, notify.SprayComplete)
				return true, nil
			}
		}
	}

	o.refreshInputs()

	select {
	case <-time.After(o.Config.Batching.Interval()):
	case <-ctx.Done():
		return true, nil
	}
	return false, nil
}

// runAnalyzer reads the full attempt log, updates the Guessed Users
// set, and reports whether hit_count grew (spec.md §4.6, invariant 7).
func (o *Orchestrator) runAnalyzer() (newHits bool, err error) {
	var records []attemptlog.Record
	scanErr := attemptlog.Scan(o.Log.Path(), o.Logger, func(rec attemptlog.Record) bool {
		records = append(records, rec)
		return true
	})
	if scanErr != nil {
		return false, scanErr
	}

	result := analyzer.Analyze(records)
	for u := range result.Users {
		o.guessed[u] = struct{}{}
	}

	grew := result.HitCount > o.prevHitCount
	o.prevHitCount = result.HitCount
	metrics.SetAnalyzerHits(result.HitCount)
	o.updateSnapshot()
	if grew {
		o.notifyBackground(notify.CredsFound)
	}
	return grew, nil
}

// refreshInputs polls both input files and, if either changed, rebuilds
// the queue so new entries splice in while preserving password-major
// order for the remaining passwords (spec.md §4.5, §4.7).
func (o *Orchestrator) refreshInputs() {
	newHash, lines, changed, err := watcher.Refresh(o.UserPath, o.userHash, o.Usernames)
	if err != nil {
		o.Logger.Warn().Err(err).Msg("failed to refresh username file")
	} else if changed {
		o.userHash, o.Usernames = newHash, lines
	}

	newHash, lines, changed, err = watcher.Refresh(o.PassPath, o.passHash, o.Passwords)
	if err != nil {
		o.Logger.Warn().Err(err).Msg("failed to refresh password file")
	} else if changed {
		o.passHash, o.Passwords = newHash, lines
	}

	o.queue = BuildQueue(o.Usernames, o.Passwords, o.Config.Domain, o.completed, o.guessed, o.Config.SkipGuessed)
	metrics.SetQueueDepth(len(o.queue))
	o.updateSnapshot()
}

// terminate implements spec.md §4.7's termination procedure: exit
// immediately under --no-wait, else poll for new work until
// poll_timeout elapses with none.
func (o *Orchestrator) terminate(ctx context.Context) (exit bool, err error) {
	if o.Config.NoWait {
		if o.Config.Analyze {
			if _, analyzeErr := o.runAnalyzer(); analyzeErr != nil {
				o.Logger.Warn().Err(analyzeErr).Msg("final analyzer pass failed")
			}
		}
		o.notify(ctx, notify.SprayComplete)
		return true, nil
	}

	if !o.waitingSent {
		o.notify(ctx, notify.SprayWaiting)
		o.waitingSent = true
	}

	deadline := time.Now().Add(o.Config.PollTimeout)
	for {
		select {
		case <-time.After(o.Config.pollPeriod()):
		case <-ctx.Done():
			return true, nil
		}

		o.refreshInputs()
		if len(o.queue) > 0 {
			return false, nil
		}

		if o.Config.PollTimeout > 0 && time.Now().After(deadline) {
			o.notify(ctx, notify.SprayComplete)
			return true, nil
		}
	}
}

// notify sends a webhook event if a Notifier/Webhook are configured,
// warning on failure without altering engine progress (spec.md §7).
func (o *Orchestrator) notify(ctx context.Context, event notify.Event) {
	if o.Notifier == nil || o.Webhook == "" {
		return
	}
	if err := notify.Send(ctx, o.Notifier, o.Webhook, event, o.Host, ""); err != nil {
		o.Logger.Warn().Err(err).Str("event", string(event)).Msg("notification failed")
		metrics.RecordNotifierFailure(string(event))
	}
}

// notifyBackground is identical to notify but named separately at the
// call site in runAnalyzer, which runs synchronously inside
// intervalPause/terminate and has no ctx of its own; it reuses
// context.Background() since a webhook POST must not be tied to the
// attempt's cancellation.
func (o *Orchestrator) notifyBackground(event notify.Event) {
	o.notify(context.Background(), event)
}
