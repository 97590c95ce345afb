package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crlsmrls/lowandslow/internal/timeparse"
)

// Config holds the full CLI surface of spec.md §6, bound through
// pflag+viper exactly as the teacher binds its server flags. Duration
// fields are kept as the raw time-grammar strings the user typed
// ("5s", "2m", ""); call the matching *Duration accessor to get a
// validated time.Duration, never time.ParseDuration directly, since
// the grammar's bare-number-uses-default-unit rule isn't stdlib's.
type Config struct {
	Usernames string `mapstructure:"usernames"`
	Passwords string `mapstructure:"passwords"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Path     string `mapstructure:"path"`
	Fireprox string `mapstructure:"fireprox"`
	Domain   string `mapstructure:"domain"`
	NoSSL    bool   `mapstructure:"no-ssl"`
	Module   string `mapstructure:"module"`

	Output string `mapstructure:"output"`
	Resume string `mapstructure:"resume"`

	Attempts int    `mapstructure:"attempts"`
	Interval string `mapstructure:"interval"`
	Equal    bool   `mapstructure:"equal"`

	Timeout   string `mapstructure:"timeout"`
	Jitter    string `mapstructure:"jitter"`
	JitterMin string `mapstructure:"jitter-min"`
	Delay     string `mapstructure:"delay"`

	Analyze     bool `mapstructure:"analyze"`
	Pause       bool `mapstructure:"pause"`
	SkipGuessed bool `mapstructure:"skip-guessed"`

	NoWait      bool   `mapstructure:"no-wait"`
	PollTimeout string `mapstructure:"poll-timeout"`

	Notify  string `mapstructure:"notify"`
	Webhook string `mapstructure:"webhook"`

	Quiet bool `mapstructure:"quiet"`
	Debug bool `mapstructure:"debug"`

	StatusAddr string `mapstructure:"status-addr"`
	LogFormat  string `mapstructure:"log-format"`
	ConfigFile string `mapstructure:"config-file"`
}

// New parses flags, environment (SPRAYCTL_ prefix), and an optional
// --config-file YAML file, in that descending order of precedence (flag
// highest), unmarshals into an immutable Config, and validates it.
func New() (*Config, error) {
	v := viper.New()

	v.SetDefault("host", "")
	v.SetDefault("port", 443)
	v.SetDefault("path", "")
	v.SetDefault("fireprox", "")
	v.SetDefault("domain", "")
	v.SetDefault("no-ssl", false)
	v.SetDefault("module", "http")
	v.SetDefault("output", "spray.jsonl")
	v.SetDefault("resume", "")
	v.SetDefault("attempts", 0)
	v.SetDefault("interval", "")
	v.SetDefault("equal", false)
	v.SetDefault("timeout", "30s")
	v.SetDefault("jitter", "")
	v.SetDefault("jitter-min", "")
	v.SetDefault("delay", "")
	v.SetDefault("analyze", false)
	v.SetDefault("pause", false)
	v.SetDefault("skip-guessed", false)
	v.SetDefault("no-wait", false)
	v.SetDefault("poll-timeout", "0")
	v.SetDefault("notify", "")
	v.SetDefault("webhook", "")
	v.SetDefault("quiet", false)
	v.SetDefault("debug", false)
	v.SetDefault("status-addr", "")
	v.SetDefault("log-format", "console")

	pflag.String("usernames", "", "Path to the username list")
	pflag.String("passwords", "", "Path to the password list, or a single password literal")
	pflag.String("host", "", "Target host")
	pflag.Int("port", 443, "Target port")
	pflag.String("path", "", "Target login path (module-specific)")
	pflag.String("fireprox", "", "Fireprox API Gateway base URL, overrides host/port")
	pflag.String("domain", "", "NTLM domain, prefixed onto each username as DOMAIN\\user")
	pflag.Bool("no-ssl", false, "Use plain HTTP instead of HTTPS")
	pflag.String("module", "http", "Target adapter: http, ntlm, o365, smb")
	pflag.String("output", "spray.jsonl", "Attempt log path")
	pflag.String("resume", "", "Path to a prior attempt log, fed into the Completed Set")
	pflag.Int("attempts", 0, "Logins per username before an interval pause")
	pflag.String("interval", "", "Time to sleep between attempt batches (e.g. 30m)")
	pflag.Bool("equal", false, "Attempt username as its own password before the main spray")
	pflag.String("timeout", "30s", "Per-attempt transport timeout")
	pflag.String("jitter", "", "Upper bound of a random per-attempt wait, mutually exclusive with --delay")
	pflag.String("jitter-min", "", "Lower bound of a random per-attempt wait, requires --jitter")
	pflag.String("delay", "", "Fixed per-attempt wait, mutually exclusive with --jitter")
	pflag.Bool("analyze", false, "Run the statistical analyzer at every interval pause")
	pflag.Bool("pause", false, "Prompt before continuing when the analyzer finds new hits, requires --analyze")
	pflag.Bool("skip-guessed", false, "Exclude users the analyzer already flagged, requires --analyze")
	pflag.Bool("no-wait", false, "Exit once the queue drains instead of polling for new input")
	pflag.String("poll-timeout", "0", "Give up polling for new input after this long, 0 waits forever")
	pflag.String("notify", "", "Webhook service: slack, teams, discord")
	pflag.String("webhook", "", "Webhook URL, requires --notify")
	pflag.Bool("quiet", false, "Suppress per-attempt console output")
	pflag.Bool("debug", false, "Verbose logging")
	pflag.String("status-addr", "", "Address for the read-only status server, e.g. :9090; empty disables it")
	pflag.String("log-format", "console", "Log output format: console or json")
	pflag.String("config-file", "", "Path to YAML config file. Can also be set with SPRAYCTL_CONFIG_FILE env var.")
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetEnvPrefix("SPRAYCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString("config-file"); configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidationError accumulates every configuration violation found by
// Validate, rather than stopping at the first one: an operator tuning
// a dozen flags benefits from seeing all the mistakes in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Violations, "\n  - "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// Validate checks every cross-field rule in spec.md §6's CLI table,
// collecting violations into a single ValidationError (nil if none).
func (c *Config) Validate() error {
	verr := &ValidationError{}

	switch c.Module {
	case "http", "ntlm", "o365", "smb":
	default:
		verr.add("module: %q must be one of http, ntlm, o365, smb", c.Module)
	}

	if c.Host == "" {
		verr.add("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		verr.add("port: %d must be between 1 and 65535", c.Port)
	}
	if c.Module == "ntlm" && c.Path == "" {
		verr.add("path is required when module=ntlm")
	}

	hasDelay := c.Delay != ""
	hasJitter := c.Jitter != ""
	hasJitterMin := c.JitterMin != ""
	if hasDelay && hasJitter {
		verr.add("delay and jitter are mutually exclusive")
	}
	if hasJitterMin && !hasJitter {
		verr.add("jitter-min requires jitter")
	}

	hasAttempts := c.Attempts != 0
	hasInterval := c.Interval != ""
	if hasAttempts != hasInterval {
		verr.add("attempts and interval must be supplied together")
	}

	if c.Notify != "" {
		switch strings.ToLower(c.Notify) {
		case "slack", "teams", "discord":
		default:
			verr.add("notify: %q must be one of slack, teams, discord", c.Notify)
		}
		if c.Webhook == "" {
			verr.add("notify requires webhook")
		}
	}

	if c.SkipGuessed && !c.Analyze {
		verr.add("skip-guessed requires analyze")
	}
	if c.Pause && !c.Analyze {
		verr.add("pause requires analyze")
	}

	if c.Resume != "" {
		if _, err := os.Stat(c.Resume); err != nil {
			verr.add("resume: %q: %v", c.Resume, err)
		}
	}

	if c.Quiet && c.Debug {
		verr.add("quiet and debug are mutually exclusive")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		verr.add("log-format: %q must be one of console, json", c.LogFormat)
	}

	c.validateTimeString(verr, "timeout", c.Timeout, "s")
	c.validateTimeString(verr, "interval", c.Interval, "m")
	c.validateTimeString(verr, "poll-timeout", c.PollTimeout, "m")
	c.validateTimeString(verr, "jitter", c.Jitter, "s")
	c.validateTimeString(verr, "jitter-min", c.JitterMin, "s")
	c.validateTimeString(verr, "delay", c.Delay, "s")

	if len(verr.Violations) > 0 {
		return verr
	}
	return nil
}

func (c *Config) validateTimeString(verr *ValidationError, flag, value, defaultUnit string) {
	if value == "" {
		return
	}
	if _, err := timeparse.Parse(value, defaultUnit); err != nil {
		verr.add("%s: %v", flag, err)
	}
}

// TimeoutDuration returns the parsed per-attempt transport timeout.
func (c *Config) TimeoutDuration() time.Duration { return c.mustParse(c.Timeout, "s") }

// IntervalDuration returns the parsed inter-batch sleep, zero if unset.
func (c *Config) IntervalDuration() time.Duration { return c.mustParse(c.Interval, "m") }

// PollTimeoutDuration returns the parsed poll-wait give-up duration,
// zero meaning "wait forever".
func (c *Config) PollTimeoutDuration() time.Duration { return c.mustParse(c.PollTimeout, "m") }

// JitterDuration returns the parsed jitter upper bound, zero if unset.
func (c *Config) JitterDuration() time.Duration { return c.mustParse(c.Jitter, "s") }

// JitterMinDuration returns the parsed jitter lower bound, zero if unset.
func (c *Config) JitterMinDuration() time.Duration { return c.mustParse(c.JitterMin, "s") }

// DelayDuration returns the parsed fixed pacing delay, zero if unset.
func (c *Config) DelayDuration() time.Duration { return c.mustParse(c.Delay, "s") }

// mustParse is only reached after Validate has already confirmed every
// time string parses cleanly, so a second error here never happens in
// practice; it still degrades to zero rather than panicking.
func (c *Config) mustParse(value, defaultUnit string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := timeparse.Parse(value, defaultUnit)
	if err != nil {
		return 0
	}
	return d
}

// HasJitter reports whether --jitter was supplied.
func (c *Config) HasJitter() bool { return c.Jitter != "" }

// HasDelay reports whether --delay was supplied.
func (c *Config) HasDelay() bool { return c.Delay != "" }

// HasBatching reports whether --attempts/--interval were supplied.
func (c *Config) HasBatching() bool { return c.Attempts != 0 && c.Interval != "" }

// DefaultConfig returns a Config populated with every flag default,
// useful for tests and for --config-file merging.
func DefaultConfig() *Config {
	return &Config{
		Port:        443,
		Module:      "http",
		Output:      "spray.jsonl",
		Timeout:     "30s",
		PollTimeout: "0",
		LogFormat:   "console",
	}
}
