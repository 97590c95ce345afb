package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crlsmrls/lowandslow/internal/attemptlog"
)

// httpTarget is the generic form-POST adapter (module "http"): it
// posts username/password fields to a configured path and classifies
// the raw status code and body length, the shape every concrete
// spraycharles HTTP target builds on (no single original_source file
// covers a generic app login form; ntlm.go and o365.go are the
// protocol-specific variants of the same POST-and-classify idea).
type httpTarget struct {
	client *http.Client
	url    string
}

func newHTTPTarget() Adapter {
	return &httpTarget{}
}

func (t *httpTarget) Initialize(_ context.Context, cfg Config) error {
	t.client = &http.Client{Timeout: secondsToDuration(cfg.Timeout)}
	t.url = buildBaseURL(cfg) + cfg.Path
	return nil
}

func (t *httpTarget) Login(ctx context.Context, username, password string) (Response, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{Username: username, Password: password}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return Response{Username: username, Password: password, Timeout: true}, ErrTimeout
		}
		return Response{Username: username, Password: password}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return Response{
		Username:   username,
		Password:   password,
		StatusCode: resp.StatusCode,
		BodyLength: len(body),
	}, nil
}

func (t *httpTarget) LogAttempt(w io.Writer, resp Response) error {
	return attemptlog.WriteLine(w, attemptlog.Record{
		Timestamp:      attemptlog.NewTimestamp(time.Now()),
		Module:         "http",
		Username:       resp.Username,
		Password:       resp.Password,
		ResponseCode:   resp.ResponseCode(),
		ResponseLength: resp.ResponseLength(),
	})
}

func (t *httpTarget) PrintResponse(w io.Writer, resp Response) {
	fmt.Fprintf(w, "%-35s %-25s %13v %15v\n", resp.Username, resp.Password, resp.ResponseCode(), resp.ResponseLength())
}

func (t *httpTarget) PrintHeaders(w io.Writer) {
	fmt.Fprintf(w, "%-35s %-25s %13s %15s\n", "Username", "Password", "Response Code", "Response Length")
	fmt.Fprintln(w, strings.Repeat("-", 90))
}

// secondsToDuration converts a target.Config.Timeout (seconds, as a
// float so sub-second timeouts parse) into a time.Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
