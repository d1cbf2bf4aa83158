// ABOUTME: Tests for the form submission relay
// ABOUTME: Covers missing fields, status propagation, host allowlisting and duplicate suppression

package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUpstream records what the proxy sent and replies with a fixed status/body.
type testUpstream struct {
	mu          sync.Mutex
	status      int
	body        string
	calls       int
	lastBody    []byte
	contentType string
	method      string
}

func (u *testUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.method = r.Method
	u.contentType = r.Header.Get("Content-Type")
	u.lastBody, _ = io.ReadAll(r.Body)
	w.WriteHeader(u.status)
	_, _ = io.WriteString(w, u.body)
}

type upstreamRecord struct {
	calls       int
	lastBody    []byte
	contentType string
	method      string
}

// snapshot returns the recorded request fields under the lock.
func (u *testUpstream) snapshot() upstreamRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	return upstreamRecord{calls: u.calls, lastBody: u.lastBody, contentType: u.contentType, method: u.method}
}

func newUpstream(t *testing.T, status int, body string) (*testUpstream, *httptest.Server) {
	t.Helper()
	u := &testUpstream{status: status, body: body}
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)
	return u, srv
}

func TestSubmit_MissingFields(t *testing.T) {
	g := New(Config{}, nil)
	defer g.Close()

	tests := []Submission{
		{},
		{WebAppURL: "http://x"},
		{TemplateParams: map[string]any{"a": 1}},
	}

	for _, sub := range tests {
		_, err := g.Submit(context.Background(), sub)
		pe, ok := AsProxyError(err)
		require.True(t, ok)
		assert.Equal(t, KindInvalidInput, pe.Kind)
		assert.Equal(t, "Missing webAppUrl or templateParams", pe.Msg)
		assert.Equal(t, http.StatusBadRequest, pe.HTTPStatus())
	}
}

func TestSubmit_RelaysBody(t *testing.T) {
	u, srv := newUpstream(t, http.StatusOK, "OK")
	g := New(Config{}, nil)
	defer g.Close()

	res, err := g.Submit(context.Background(), Submission{
		WebAppURL:      srv.URL,
		TemplateParams: map[string]any{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "OK", res.Message)

	got := u.snapshot()
	assert.Equal(t, 1, got.calls)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json", got.contentType)
	assert.JSONEq(t, `{"a":1}`, string(got.lastBody))
}

func TestSubmit_EmptyParamsObjectIsPresent(t *testing.T) {
	_, srv := newUpstream(t, http.StatusCreated, "created")
	g := New(Config{}, nil)
	defer g.Close()

	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(`{"webAppUrl":"`+srv.URL+`","templateParams":{}}`), &sub))

	res, err := g.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode, "any 2xx relays as 200")
	assert.Equal(t, "created", res.Message)
}

func TestSubmit_PropagatesUpstreamStatus(t *testing.T) {
	_, srv := newUpstream(t, http.StatusForbidden, "Script access denied")
	g := New(Config{}, nil)
	defer g.Close()

	res, err := g.Submit(context.Background(), Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Script access denied", res.Message)
}

func TestSubmit_NetworkFailure(t *testing.T) {
	_, srv := newUpstream(t, http.StatusOK, "OK")
	srv.Close()

	var outcomes []string
	g := New(Config{}, nil, WithObserver(func(o string) { outcomes = append(outcomes, o) }))
	defer g.Close()

	_, err := g.Submit(context.Background(), Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{"a": 1}})
	pe, ok := AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, pe.Kind)
	assert.Equal(t, "Error submitting to Google Sheets", pe.Msg)
	assert.Equal(t, http.StatusInternalServerError, pe.HTTPStatus())
	assert.Equal(t, []string{OutcomeFailed}, outcomes)
}

func TestSubmit_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := New(Config{Timeout: 50 * time.Millisecond}, nil)
	defer g.Close()

	_, err := g.Submit(context.Background(), Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{}})
	pe, ok := AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, pe.Kind)
}

func TestSubmit_UnserializablePayload(t *testing.T) {
	g := New(Config{}, nil)
	defer g.Close()

	_, err := g.Submit(context.Background(), Submission{
		WebAppURL:      "http://example.com",
		TemplateParams: map[string]any{"ch": make(chan int)},
	})
	pe, ok := AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, pe.Kind)
	assert.Equal(t, MsgUpstream, pe.Msg)
}

func TestSubmit_InvalidURL(t *testing.T) {
	g := New(Config{}, nil)
	defer g.Close()

	for _, raw := range []string{"ftp://example.com", "not a url", "http://"} {
		_, err := g.Submit(context.Background(), Submission{WebAppURL: raw, TemplateParams: map[string]any{}})
		pe, ok := AsProxyError(err)
		require.True(t, ok, raw)
		assert.Equal(t, KindInvalidInput, pe.Kind, raw)
	}
}

func TestSubmit_AllowedHosts(t *testing.T) {
	_, srv := newUpstream(t, http.StatusOK, "OK")
	g := New(Config{AllowedHosts: []string{".google.com", "127.0.0.1"}}, nil)
	defer g.Close()

	_, err := g.Submit(context.Background(), Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{}})
	require.NoError(t, err)

	_, err = g.Submit(context.Background(), Submission{WebAppURL: "https://evil.example.com/hook", TemplateParams: map[string]any{}})
	pe, ok := AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, KindForbiddenTarget, pe.Kind)

	_, err = g.checkTarget("https://script.google.com/macros/s/abc/exec")
	assert.NoError(t, err)
}

func TestSubmit_DuplicateWindow(t *testing.T) {
	u, srv := newUpstream(t, http.StatusOK, "OK")
	g := New(Config{DuplicateWindow: time.Minute}, nil)
	defer g.Close()
	ctx := context.Background()

	sub := Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{"name": "Ana", "email": "ana@example.com"}}
	_, err := g.Submit(ctx, sub)
	require.NoError(t, err)

	_, err = g.Submit(ctx, sub)
	pe, ok := AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, KindDuplicate, pe.Kind)
	assert.Equal(t, http.StatusConflict, pe.HTTPStatus())

	other := Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{"name": "Bo"}}
	_, err = g.Submit(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, 2, u.snapshot().calls)
}

func TestSubmit_FailedSubmissionCanRetry(t *testing.T) {
	u, srv := newUpstream(t, http.StatusInternalServerError, "boom")
	g := New(Config{DuplicateWindow: time.Minute}, nil)
	defer g.Close()
	ctx := context.Background()

	sub := Submission{WebAppURL: srv.URL, TemplateParams: map[string]any{"a": 1}}
	res, err := g.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	u.mu.Lock()
	u.status = http.StatusOK
	u.mu.Unlock()

	res, err = g.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRelayStatus(t *testing.T) {
	assert.Equal(t, 200, relayStatus(200))
	assert.Equal(t, 200, relayStatus(204))
	assert.Equal(t, 404, relayStatus(404))
	assert.Equal(t, 503, relayStatus(503))
	assert.Equal(t, 502, relayStatus(302))
}
