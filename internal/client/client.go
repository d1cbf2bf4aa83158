// ABOUTME: Authenticated HTTP client for the academy admin API
// ABOUTME: Attaches the bearer token and the cookie jar to every request

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// VerifyPath is the fixed route used by CheckAuth.
const VerifyPath = "/api/admin/verify"

// Client sends requests to one academy gateway.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTokenProvider sets where the session token comes from. Without it the
// client sends no Authorization header.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithHTTPClient replaces the underlying client. A cookie jar is attached if it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for baseURL (e.g. "https://academy.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     StaticToken(""),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList, and nil is valid.
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	return c
}

// BaseURL returns the gateway URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchOption adjusts a single Fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	overrideAuth bool
}

// WithAuthorizationOverride lets an Authorization header passed to Fetch
// replace the stored token.
func WithAuthorizationOverride() FetchOption {
	return func(o *fetchOptions) { o.overrideAuth = true }
}

// Fetch sends a request and returns the raw response; callers inspect the
// status and must close the body. path may be absolute or relative to the
// base URL. Content-Type defaults to application/json. When a token is
// available it is sent as a bearer header, and entries in header cannot
// remove or replace it.
func (c *Client) Fetch(ctx context.Context, method, path string, body io.Reader, header http.Header, opts ...FetchOption) (*http.Response, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if method == "" {
		method = http.MethodGet
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token != "" && (!o.overrideAuth || req.Header.Get("Authorization") == "") {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return resp, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// User is the admin identity reported by the verify route.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// AuthResult is the outcome of CheckAuth. Exactly one of User or Error is set.
type AuthResult struct {
	Success bool
	User    *User
	Error   string
}

// CheckAuth asks the gateway whether the current token is valid. It never
// returns an error: network failures and rejections become Success=false.
func (c *Client) CheckAuth(ctx context.Context) AuthResult {
	resp, err := c.Fetch(ctx, http.MethodGet, VerifyPath, nil, nil)
	if err != nil {
		return AuthResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return AuthResult{Error: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AuthResult{Error: errorMessage(resp.StatusCode, data)}
	}

	var body struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.User == nil {
		return AuthResult{Error: "unexpected verify response"}
	}
	return AuthResult{Success: true, User: body.User}
}

// errorMessage extracts {"error","reason"} from a failure body.
func errorMessage(status int, data []byte) string {
	var e struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		if e.Reason != "" {
			return e.Error + ": " + e.Reason
		}
		return e.Error
	}
	if len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	return http.StatusText(status)
}
