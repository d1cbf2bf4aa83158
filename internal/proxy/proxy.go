// ABOUTME: Form submission proxy that forwards a JSON payload to a webhook URL
// ABOUTME: Relays the upstream body as {message}, suppresses duplicates within a window

// Package proxy forwards contact and registration form submissions to an
// external webhook (a Google Apps Script web app) and relays its reply.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/academy-gateway/internal/dedupe"
)

// Public error messages returned to callers.
const (
	MsgMissingFields = "Missing webAppUrl or templateParams"
	MsgInvalidURL    = "Invalid webAppUrl"
	MsgHostNotAllow  = "webAppUrl host is not allowed"
	MsgDuplicate     = "Duplicate submission"
	MsgUpstream      = "Error submitting to Google Sheets"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxBody     = 1 << 20
	defaultDedupeLimit = 10000
)

// Kind classifies a ProxyError.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindForbiddenTarget
	KindDuplicate
	KindUpstream
)

// ProxyError is returned by Submit when nothing usable came back from upstream.
type ProxyError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *ProxyError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *ProxyError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindForbiddenTarget:
		return http.StatusForbidden
	case KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Submission is the body accepted by the submit route.
type Submission struct {
	WebAppURL      string         `json:"webAppUrl"`
	TemplateParams map[string]any `json:"templateParams"`
}

// Result is the relayed upstream reply. StatusCode is 200 for any 2xx reply
// and the upstream status otherwise.
type Result struct {
	StatusCode int
	Message    string
}

// Config configures a Gateway.
type Config struct {
	// Timeout bounds the whole upstream exchange. Zero means 15s.
	Timeout time.Duration
	// AllowedHosts restricts target hosts when non-empty. Entries match the
	// host exactly or, with a leading ".", any subdomain.
	AllowedHosts []string
	// DuplicateWindow rejects an identical submission repeated within it.
	// Zero disables duplicate suppression.
	DuplicateWindow time.Duration
	// MaxResponseBytes caps how much of the upstream body is relayed.
	MaxResponseBytes int64
}

// Outcome labels reported to an observer.
const (
	OutcomeForwarded = "forwarded"
	OutcomeRejected  = "rejected"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the outbound client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithObserver registers fn to receive the outcome label of every Submit.
func WithObserver(fn func(outcome string)) Option {
	return func(g *Gateway) { g.observe = fn }
}

// Gateway forwards submissions.
type Gateway struct {
	client  *http.Client
	allowed []string
	seen    *dedupe.Cache
	maxBody int64
	logger  *slog.Logger
	observe func(string)
}

// New creates a gateway.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	g := &Gateway{
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBody,
		logger:  logger.With("component", "proxy"),
		observe: func(string) {},
	}
	for _, h := range cfg.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			g.allowed = append(g.allowed, h)
		}
	}
	if cfg.DuplicateWindow > 0 {
		g.seen = dedupe.New(cfg.DuplicateWindow, defaultDedupeLimit)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Close releases the duplicate window.
func (g *Gateway) Close() {
	if g.seen != nil {
		g.seen.Close()
	}
}

// Submit validates sub, POSTs TemplateParams as JSON to WebAppURL and relays
// the upstream body. Upstream error statuses are returned in Result, not as
// errors; a *ProxyError means the submission never produced a reply.
func (g *Gateway) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.WebAppURL == "" || sub.TemplateParams == nil {
		g.observe(OutcomeInvalid)
		return nil, &ProxyError{Kind: KindInvalidInput, Msg: MsgMissingFields}
	}

	target, err := g.checkTarget(sub.WebAppURL)
	if err != nil {
		g.observe(OutcomeInvalid)
		return nil, err
	}

	payload, err := json.Marshal(sub.TemplateParams)
	if err != nil {
		g.observe(OutcomeFailed)
		return nil, &ProxyError{Kind: KindUpstream, Msg: MsgUpstream, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	var key string
	if g.seen != nil {
		key = dedupe.Key([]byte(target.String()), payload)
		if !g.seen.Claim(key) {
			g.observe(OutcomeDuplicate)
			return nil, &ProxyError{Kind: KindDuplicate, Msg: MsgDuplicate}
		}
	}

	res, err := g.forward(ctx, target, payload)
	if err != nil {
		if key != "" {
			g.seen.Forget(key)
		}
		g.observe(OutcomeFailed)
		g.logger.Error("form submission failed", "host", target.Host, "error", err)
		return nil, &ProxyError{Kind: KindUpstream, Msg: MsgUpstream, Err: err}
	}

	if res.StatusCode != http.StatusOK {
		if key != "" {
			g.seen.Forget(key)
		}
		g.observe(OutcomeRejected)
		g.logger.Warn("upstream rejected form submission", "host", target.Host, "status", res.StatusCode)
		return res, nil
	}

	g.observe(OutcomeForwarded)
	g.logger.Info("form submission forwarded", "host", target.Host)
	return res, nil
}

func (g *Gateway) checkTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ProxyError{Kind: KindInvalidInput, Msg: MsgInvalidURL, Err: err}
	}
	if len(g.allowed) == 0 {
		return u, nil
	}

	host := strings.ToLower(u.Hostname())
	for _, a := range g.allowed {
		if host == a || (strings.HasPrefix(a, ".") && strings.HasSuffix(host, a)) {
			return u, nil
		}
	}
	return nil, &ProxyError{Kind: KindForbiddenTarget, Msg: MsgHostNotAllow}
}

func (g *Gateway) forward(ctx context.Context, target *url.URL, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Result{StatusCode: relayStatus(resp.StatusCode), Message: string(body)}, nil
}

// relayStatus collapses 2xx to 200 and passes error statuses through.
// Anything else (an unfollowed redirect, 1xx) becomes 502.
func relayStatus(code int) int {
	switch {
	case code >= 200 && code < 300:
		return http.StatusOK
	case code >= 400 && code < 600:
		return code
	default:
		return http.StatusBadGateway
	}
}

// AsProxyError is a convenience wrapper around errors.As.
func AsProxyError(err error) (*ProxyError, bool) {
	var pe *ProxyError
	ok := errors.As(err, &pe)
	return pe, ok
}
