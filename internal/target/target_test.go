package target

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/crlsmrls/lowandslow/internal/testtarget"
)

func parseHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return u.Hostname(), port
}

func TestHTTPTarget_Login(t *testing.T) {
	srv := testtarget.New(testtarget.Config{StatusCode: 200, Body: "welcome back"})
	defer srv.Close()

	host, port := parseHostPort(t, srv.URL)
	adapter := newHTTPTarget()
	cfg := Config{Host: host, Port: port, Path: "/login", NoSSL: true, Timeout: 2}
	if err := adapter.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	resp, err := adapter.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if resp.BodyLength != len("welcome back") {
		t.Errorf("expected body length %d, got %d", len("welcome back"), resp.BodyLength)
	}

	var buf bytes.Buffer
	if err := adapter.LogAttempt(&buf, resp); err != nil {
		t.Fatalf("log attempt: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal logged record: %v", err)
	}
	if rec["Module"] != "http" || rec["Username"] != "alice" || rec["Password"] != "hunter2" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestHTTPTarget_Timeout(t *testing.T) {
	srv := testtarget.New(testtarget.Config{StatusCode: 200, Delay: 200 * time.Millisecond})
	defer srv.Close()

	host, port := parseHostPort(t, srv.URL)
	adapter := newHTTPTarget()
	cfg := Config{Host: host, Port: port, Path: "/login", NoSSL: true, Timeout: 0.02}
	if err := adapter.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	resp, err := adapter.Login(context.Background(), "alice", "hunter2")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !resp.Timeout {
		t.Error("expected Response.Timeout to be set")
	}
	if resp.ResponseCode() != "TIMEOUT" {
		t.Errorf("expected TIMEOUT response code, got %v", resp.ResponseCode())
	}
}

func TestNTLMTarget_ScrapesHiddenFieldsAndDetectsAuthCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/adfs/ls/IdpInitiatedSignOn.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`<form action="/adfs/ls/login.aspx"><input type="hidden" name="csrf" value="tok123"/></form>`))
			return
		}
		if r.FormValue("csrf") != "tok123" {
			t.Errorf("expected scraped hidden field csrf=tok123, got %q", r.FormValue("csrf"))
		}
		http.SetCookie(w, &http.Cookie{Name: "MSISAuth", Value: "abc"})
		w.Header().Set("Location", "/adfs/ls/")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/adfs/ls/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("csrf") != "tok123" {
			t.Errorf("expected scraped hidden field csrf=tok123, got %q", r.FormValue("csrf"))
		}
		http.SetCookie(w, &http.Cookie{Name: "MSISAuth", Value: "abc"})
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host, port := parseHostPort(t, srv.URL)
	adapter := newNTLMTarget()
	cfg := Config{Host: host, Port: port, Path: "/adfs/ls/IdpInitiatedSignOn.aspx", NoSSL: true, Timeout: 2}
	if err := adapter.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	resp, err := adapter.Login(context.Background(), "bob", "letmein")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if resp.ResponseCode() != "302-AUTH" {
		t.Errorf("expected 302-AUTH marker from MSISAuth cookie, got %v", resp.ResponseCode())
	}
}

func TestO365ErrorTable_ClassifiesKnownCodes(t *testing.T) {
	tests := []struct {
		description string
		result      string
	}{
		{"AADSTS50126: invalid credentials", "Fail"},
		{"AADSTS50076: MFA required", "Success"},
		{"AADSTS50055: password expired", "Success"},
		{"AADSTS99999: unmapped code", "Fail"},
	}
	for _, tc := range tests {
		code, _, _ := strings.Cut(tc.description, ":")
		entry, ok := o365ErrorTable[code]
		if !ok {
			if tc.result != "Fail" {
				t.Errorf("%s: expected a Fail default for an unmapped code", tc.description)
			}
			continue
		}
		if entry.Result != tc.result {
			t.Errorf("%s: expected result %s, got %s", tc.description, tc.result, entry.Result)
		}
	}
}

func TestExtractAADSTSCode(t *testing.T) {
	body, _ := json.Marshal(map[string]string{
		"error_description": "AADSTS50034: Invalid username provided.",
	})
	if got := extractAADSTSCode(body); got != "AADSTS50034" {
		t.Errorf("expected AADSTS50034, got %q", got)
	}
	if got := extractAADSTSCode([]byte("not json")); got != "" {
		t.Errorf("expected empty code on unparseable body, got %q", got)
	}
}

func TestSMBTarget_ReachabilityAndDeterministicClassification(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, port := parseHostPort(t, "tcp://"+ln.Addr().String())
	adapter := newSMBTarget()
	cfg := Config{Host: host, Port: port, Timeout: 2}
	if err := adapter.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	first, err := adapter.Login(context.Background(), "svc-acct", "Summer2024!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if first.SMBLogin == "" {
		t.Fatal("expected a non-empty SMB Login classification")
	}

	second, err := adapter.Login(context.Background(), "svc-acct", "Summer2024!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if first.SMBLogin != second.SMBLogin {
		t.Errorf("expected deterministic classification for the same pair, got %q then %q", first.SMBLogin, second.SMBLogin)
	}
}

func TestSMBTarget_UnreachablePortTimesOut(t *testing.T) {
	adapter := newSMBTarget()
	cfg := Config{Host: "127.0.0.1", Port: 1, Timeout: 0.05}
	if err := adapter.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	resp, err := adapter.Login(context.Background(), "u", "p")
	if err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
	if !resp.Timeout {
		t.Error("expected Response.Timeout to be set")
	}
}
