// Package target implements the Target Adapter (C1, spec.md §4.1):
// one small adapter per authentication protocol, each performing
// exactly one credential attempt and owning its own Attempt Record
// shape. The Orchestrator (internal/engine) is purely a caller of
// this interface; no adapter knows about the work queue, pacing, or
// the escalator.
package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Module selects which adapter target.New constructs, the same
// strings config.Config.Module validates against.
type Module string

const (
	ModuleHTTP Module = "http"
	ModuleNTLM Module = "ntlm"
	ModuleO365 Module = "o365"
	ModuleSMB  Module = "smb"
)

// ErrTimeout is returned by Adapter.Login when the attempt timed out
// rather than receiving a negative answer. The Orchestrator checks
// for this sentinel with errors.Is to route the attempt to the
// Escalator instead of treating it as an ordinary adapter failure
// (spec.md §4.1, §7).
var ErrTimeout = errors.New("target: request timed out")

// Config configures an adapter's transport, forwarded verbatim from
// the CLI surface (spec.md §6); the Orchestrator never reads it.
type Config struct {
	Host     string
	Port     int
	Path     string
	Domain   string
	Fireprox string
	NoSSL    bool

	// Timeout is the per-attempt transport timeout in seconds, spec.md
	// §6's "timeout" flag, carried as a float so sub-second timeouts
	// from the time-string grammar ("500ms" isn't in the grammar, but
	// "0.5s" parses as one) survive the conversion.
	Timeout float64
}

// Response is every shape an Attempt Record can take (spec.md §3):
// HTTP/NTLM numeric status+length, O365's Result/Message pair, or
// SMB's status string. One struct with zero-valued unused fields
// rather than an interface-typed variant, since the Orchestrator only
// ever reads Username/Password/Timeout back out for bookkeeping and
// never dispatches behavior on the concrete shape — that dispatch
// lives entirely inside each adapter's own LogAttempt/PrintResponse.
type Response struct {
	Username string
	Password string

	// Timeout marks a transport-level timeout distinctly from a
	// negative answer, per spec.md §4.1.
	Timeout bool

	// HTTP / NTLM shape.
	StatusCode int
	BodyLength int

	// StatusLabel overrides ResponseCode()'s rendering of StatusCode
	// when an adapter has a richer classification of the same
	// response, e.g. the NTLM adapter's "302-AUTH" auth-cookie marker.
	StatusLabel string

	// O365 shape.
	Result  string
	Message string

	// SMB shape.
	SMBLogin string
}

// ResponseCode renders the Attempt Record's "Response Code" field:
// the TIMEOUT marker, a richer status label if the adapter set one,
// or the raw numeric status code. Centralizing this here means no
// adapter re-implements the same three-way branch (spec.md §6).
func (r Response) ResponseCode() any {
	if r.Timeout {
		return timeoutMarker
	}
	if r.StatusLabel != "" {
		return r.StatusLabel
	}
	return r.StatusCode
}

// ResponseLength renders the Attempt Record's "Response Length" field.
func (r Response) ResponseLength() any {
	if r.Timeout {
		return timeoutMarker
	}
	return r.BodyLength
}

// timeoutMarker mirrors attemptlog.TimeoutMarker without importing
// attemptlog here; LogAttempt implementations that do persist through
// attemptlog.Record still use attemptlog.TimeoutMarker/WriteLine
// directly. Keeping this package's own rendering independent of the
// log package's constant avoids a needless import for a value every
// adapter already threads through its own Record construction.
const timeoutMarker = "TIMEOUT"

// Adapter is the capability set spec.md §4.1 requires of any target:
// set up a transport, perform exactly one attempt without retrying
// internally, and own its own persisted/printed record shape.
type Adapter interface {
	// Initialize sets up the transport from cfg. Called once before
	// the first Login.
	Initialize(ctx context.Context, cfg Config) error

	// Login performs exactly one credential attempt. A transport
	// timeout returns ErrTimeout (wrapped or bare) alongside a
	// Response with Timeout set; any other error aborts just this
	// attempt (spec.md §7).
	Login(ctx context.Context, username, password string) (Response, error)

	// LogAttempt appends the Attempt Record for resp to w, in the
	// adapter's own field shape (spec.md §6).
	LogAttempt(w io.Writer, resp Response) error

	// PrintResponse renders a human-readable one-line trace of resp.
	PrintResponse(w io.Writer, resp Response)

	// PrintHeaders renders a one-time column header above traces.
	PrintHeaders(w io.Writer)
}

// New constructs the adapter for module. The returned Adapter still
// needs Initialize called before any Login.
func New(module Module, _ Config) (Adapter, error) {
	switch module {
	case ModuleHTTP:
		return newHTTPTarget(), nil
	case ModuleNTLM:
		return newNTLMTarget(), nil
	case ModuleO365:
		return newO365Target(), nil
	case ModuleSMB:
		return newSMBTarget(), nil
	default:
		return nil, fmt.Errorf("target: unknown module %q", module)
	}
}

// isTimeoutErr reports whether err represents a transport-level
// timeout (a net.Error with Timeout() true, or a context deadline),
// shared by every HTTP-shaped adapter's Login so the TIMEOUT/ErrTimeout
// classification is identical across http.go, ntlm.go, and o365.go.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// buildBaseURL resolves the scheme://host:port (or fireprox) base
// every HTTP-shaped adapter posts against, per spec.md's glossary
// entry for Fireprox: when set it replaces host/port entirely and the
// adapter's own path is appended under "/fireprox".
func buildBaseURL(cfg Config) string {
	if cfg.Fireprox != "" {
		return fmt.Sprintf("https://%s/fireprox", cfg.Fireprox)
	}
	scheme := "https"
	if cfg.NoSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}
