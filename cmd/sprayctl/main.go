// Command sprayctl drives a password spray: it wires the CLI config
// into every component (C1-C8) plus the ambient logging, metrics, and
// status-server stack, then runs the Orchestrator to completion or
// until an OS signal cancels it.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/crlsmrls/lowandslow/config"
	"github.com/crlsmrls/lowandslow/internal/attemptlog"
	"github.com/crlsmrls/lowandslow/internal/engine"
	"github.com/crlsmrls/lowandslow/internal/escalator"
	"github.com/crlsmrls/lowandslow/internal/notify"
	"github.com/crlsmrls/lowandslow/internal/pacing"
	"github.com/crlsmrls/lowandslow/internal/target"
	"github.com/crlsmrls/lowandslow/logger"
	"github.com/crlsmrls/lowandslow/metrics"
	"github.com/crlsmrls/lowandslow/server"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.InitLoggerWithFormat(logger.LevelFor(cfg.Quiet, cfg.Debug), cfg.LogFormat, os.Stderr)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("spray terminated")
	}
}

func run(cfg *config.Config) error {
	usernames, err := loadLines(cfg.Usernames)
	if err != nil {
		return fmt.Errorf("load usernames: %w", err)
	}
	passwords, err := loadPasswords(cfg.Passwords)
	if err != nil {
		return fmt.Errorf("load passwords: %w", err)
	}

	attemptLog, err := attemptlog.Open(cfg.Output, log.Logger)
	if err != nil {
		return err
	}
	defer attemptLog.Close()

	if cfg.Resume != "" {
		if err := seedFromResumeLog(cfg.Resume, cfg.Output); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
	}

	adapterCfg := target.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Fireprox: cfg.Fireprox,
		NoSSL:    cfg.NoSSL,
		Timeout:  cfg.TimeoutDuration().Seconds(),
	}
	adapter, err := target.New(target.Module(cfg.Module), adapterCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := adapter.Initialize(ctx, adapterCfg); err != nil {
		return fmt.Errorf("initialize %s adapter: %w", cfg.Module, err)
	}

	gate, err := pacing.NewFromConfig(cfg.HasDelay(), cfg.DelayDuration(), cfg.HasJitter(), cfg.JitterMinDuration(), cfg.JitterDuration())
	if err != nil {
		return err
	}

	var batching engine.Batching
	if cfg.HasBatching() {
		batching, err = engine.NewIntervalBatching(cfg.Attempts, cfg.IntervalDuration())
		if err != nil {
			return err
		}
	} else {
		batching = engine.UnboundedBatching()
	}

	var notifier notify.Notifier
	if cfg.Notify != "" {
		notifier, err = notify.New(notifyService(cfg.Notify), nil)
		if err != nil {
			return err
		}
	}

	reg := metrics.InitMetrics()

	orch := &engine.Orchestrator{
		Adapter:   adapter,
		Log:       attemptLog,
		Gate:      gate,
		Escalator: escalator.New(),
		Notifier:  notifier,
		Webhook:   cfg.Webhook,
		Host:      cfg.Host,
		Out:       os.Stdout,
		Logger:    log.Logger,
		Confirm:   confirmFromStdin,
		Module:    cfg.Module,
		Config: engine.Config{
			Domain:      cfg.Domain,
			Equal:       cfg.Equal,
			SkipGuessed: cfg.SkipGuessed,
			Analyze:     cfg.Analyze,
			Pause:       cfg.Pause,
			NoWait:      cfg.NoWait,
			PollTimeout: cfg.PollTimeoutDuration(),
			Batching:    batching,
		},
		UserPath:  cfg.Usernames,
		PassPath:  passwordFilePath(cfg.Passwords),
		Usernames: usernames,
		Passwords: passwords,
	}
	if cfg.Quiet {
		orch.Out = discardWriter{}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info().Msg("shutdown signal received; finishing in-flight attempt")
		cancel()
	}()

	if cfg.StatusAddr != "" {
		srv := server.New(cfg.StatusAddr, os.Stderr, reg, func() interface{} { return orch.Snapshot() })
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("status server stopped")
			}
		}()
	}

	if !cfg.Quiet {
		adapter.PrintHeaders(orch.Out)
	}

	return orch.Run(ctx)
}

// notifyService maps the --notify flag's lowercase value to the
// HookSvc constant notify.New expects; Validate has already confirmed
// it is one of slack/teams/discord.
func notifyService(value string) notify.HookSvc {
	switch strings.ToLower(value) {
	case "slack":
		return notify.Slack
	case "teams":
		return notify.Teams
	default:
		return notify.Discord
	}
}

// loadLines reads a newline-delimited file into a slice, skipping
// blank lines. An empty path yields an empty slice rather than an
// error, since not every adapter needs a username list.
func loadLines(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// loadPasswords treats --passwords as a file path when it names an
// existing file, otherwise as a single literal password, per spec.md
// §6 ("Path to the password list, or a single password literal").
func loadPasswords(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	if _, err := os.Stat(value); err == nil {
		return loadLines(value)
	}
	return []string{value}, nil
}

// passwordFilePath returns value when it is a real file (so the
// Watcher can poll it for changes), or empty when it was a literal
// password, which never changes underneath a running spray.
func passwordFilePath(value string) string {
	if value == "" {
		return ""
	}
	if _, err := os.Stat(value); err == nil {
		return value
	}
	return ""
}

// seedFromResumeLog copies every line of a prior attempt log into the
// current output log, so DeriveCompleted (run during orch.Run) treats
// the resumed history as if it had been appended in this run, per
// spec.md §4.2.
func seedFromResumeLog(resumePath, outputPath string) error {
	src, err := os.Open(resumePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	w := bufio.NewWriter(dst)
	for sc.Scan() {
		if _, err := w.Write(sc.Bytes()); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return w.Flush()
}

// confirmFromStdin blocks for a yes/no answer on stdin, backing
// --pause and the escalator's stage-2 recovery prompt.
func confirmFromStdin(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "y" || answer == "yes"
}

// discardWriter silences per-attempt console output under --quiet
// without touching the attempt log, which is unaffected by --quiet.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
