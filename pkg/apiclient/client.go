package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/rbac"
)

// Endpoint paths relative to the base URL
const (
	PathLogin        = "/login"
	PathRefreshToken = "/refresh-token"
	PathPermissions  = "/permissions/"
)

// ErrUnauthorized matches 401 and 403 responses via errors.Is
var ErrUnauthorized = errors.New("unauthorized")

// Error is returned for any non-2xx response
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Message)
}

// Is reports 401/403 errors as ErrUnauthorized
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// LoginResult is the response of the authentication endpoint
type LoginResult struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// RefreshResult is the response of the token refresh endpoint. User is only
// present when the API chooses to send it.
type RefreshResult struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user,omitempty"`
}

// Client talks to the back office REST API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as the base of the bearer and tracing transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login exchanges credentials for a token and user
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, PathLogin, "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshToken exchanges a persisted token for a fresh one
func (c *Client) RefreshToken(ctx context.Context, token string) (*RefreshResult, error) {
	var result RefreshResult
	if err := c.do(ctx, http.MethodPost, PathRefreshToken, token, map[string]string{"token": token}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchPermissions returns the raw grants of a user. Both a plain JSON array
// and the {"$values": [...]} envelope are accepted.
func (c *Client) FetchPermissions(ctx context.Context, token string, userID auth.UserID) ([]rbac.Grant, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var raw json.RawMessage
	path := PathPermissions + url.PathEscape(userID.String())
	if err := c.do(ctx, http.MethodGet, path, token, nil, &raw); err != nil {
		return nil, err
	}

	grants, err := decodeGrants(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return grants, nil
}

// valuesEnvelope is the list wrapper produced by the API's reference-preserving serializer
type valuesEnvelope struct {
	Values *[]rbac.Grant `json:"$values"`
}

func decodeGrants(raw json.RawMessage) ([]rbac.Grant, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	switch trimmed[0] {
	case '[':
		var grants []rbac.Grant
		if err := json.Unmarshal(trimmed, &grants); err != nil {
			return nil, err
		}
		return grants, nil
	case '{':
		var env valuesEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		if env.Values == nil {
			return nil, fmt.Errorf("object response without $values")
		}
		return *env.Values, nil
	default:
		return nil, fmt.Errorf("unexpected response shape")
	}
}

// do performs one request. There is no retry: a failed call surfaces once.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := contextkeys.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.clientFor(token).Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// clientFor returns an HTTP client that attaches the bearer token, if any,
// and traces outbound requests.
func (c *Client) clientFor(token string) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = base
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		}
	}

	return &http.Client{
		Transport:     otelhttp.NewTransport(transport),
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
}

// errorMessage extracts a human readable message from an error body:
// {"message": "..."}, {"error": "..."}, or the raw text.
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Title   string `json:"title"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Title != "":
			return payload.Title
		}
	}
	return strings.TrimSpace(string(data))
}
