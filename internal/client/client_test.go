// ABOUTME: Tests for the admin HTTP client and token providers
// ABOUTME: Runs against httptest servers that capture the last request

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures the last request received.
type testHandler struct {
	mu          sync.Mutex
	lastRequest *http.Request
	status      int
	body        string
	setCookie   *http.Cookie
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRequest = r
	if h.setCookie != nil {
		http.SetCookie(w, h.setCookie)
	}
	w.Header().Set("Content-Type", "application/json")
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(h.body))
}

func (h *testHandler) last() *http.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastRequest
}

func (h *testHandler) reply(status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.body = body
	h.setCookie = nil
}

func newTestServer(t *testing.T, h *testHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_AttachesTokenAndContentType(t *testing.T) {
	h := &testHandler{body: `{}`}
	srv := newTestServer(t, h)
	c := New(srv.URL, WithTokenProvider(StaticToken("abc")))

	resp, err := c.Fetch(context.Background(), http.MethodGet, "/api/anything", nil, http.Header{})
	require.NoError(t, err)
	resp.Body.Close()

	require.NotNil(t, h.last())
	assert.Equal(t, "Bearer abc", h.last().Header.Get("Authorization"))
	assert.Equal(t, "application/json", h.last().Header.Get("Content-Type"))
}

func TestFetch_NoTokenStillSends(t *testing.T) {
	h := &testHandler{status: http.StatusUnauthorized, body: `{"error":"authentication failed"}`}
	srv := newTestServer(t, h)
	c := New(srv.URL)

	resp, err := c.Fetch(context.Background(), http.MethodGet, "/api/admin/verify", nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "raw response returned for inspection")
	require.NotNil(t, h.last())
	_, present := h.last().Header["Authorization"]
	assert.False(t, present)
}

func TestFetch_CallerHeaders(t *testing.T) {
	h := &testHandler{body: `{}`}
	srv := newTestServer(t, h)
	c := New(srv.URL, WithTokenProvider(StaticToken("abc")))
	ctx := context.Background()

	hdr := http.Header{}
	hdr.Set("Content-Type", "text/plain")
	hdr.Set("X-Request-Source", "admin-ui")
	hdr.Set("Authorization", "Bearer forged")

	resp, err := c.Fetch(ctx, http.MethodPost, "/api/x", nil, hdr)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "text/plain", h.last().Header.Get("Content-Type"))
	assert.Equal(t, "admin-ui", h.last().Header.Get("X-Request-Source"))
	assert.Equal(t, "Bearer abc", h.last().Header.Get("Authorization"), "caller cannot replace the token")

	resp, err = c.Fetch(ctx, http.MethodPost, "/api/x", nil, hdr, WithAuthorizationOverride())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer forged", h.last().Header.Get("Authorization"))

	// Override without a replacement still sends the stored token.
	resp, err = c.Fetch(ctx, http.MethodPost, "/api/x", nil, nil, WithAuthorizationOverride())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer abc", h.last().Header.Get("Authorization"))
}

func TestFetch_SendsCookies(t *testing.T) {
	h := &testHandler{body: `{}`, setCookie: &http.Cookie{Name: "academy_admin_session", Value: "cookie-token", Path: "/"}}
	srv := newTestServer(t, h)
	c := New(srv.URL)
	ctx := context.Background()

	resp, err := c.Fetch(ctx, http.MethodPost, "/api/admin/login", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	h.reply(http.StatusOK, `{}`)
	resp, err = c.Fetch(ctx, http.MethodGet, "/api/admin/verify", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	cookie, err := h.last().Cookie("academy_admin_session")
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", cookie.Value)
}

func TestFetch_TokenProviderError(t *testing.T) {
	c := New("http://127.0.0.1:1", WithTokenProvider(TokenFunc(func(context.Context) (string, error) {
		return "", errors.New("keyring locked")
	})))

	_, err := c.Fetch(context.Background(), http.MethodGet, "/", nil, nil)
	assert.ErrorContains(t, err, "keyring locked")
}

func TestCheckAuth(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := &testHandler{body: `{"user":{"id":"u1","username":"coach","display_name":"Coach"}}`}
		srv := newTestServer(t, h)
		c := New(srv.URL, WithTokenProvider(StaticToken("abc")))

		res := c.CheckAuth(context.Background())
		assert.True(t, res.Success)
		require.NotNil(t, res.User)
		assert.Equal(t, "coach", res.User.Username)
		assert.Empty(t, res.Error)
		assert.Equal(t, VerifyPath, h.last().URL.Path)
	})

	t.Run("rejected", func(t *testing.T) {
		h := &testHandler{status: http.StatusUnauthorized, body: `{"error":"authentication failed","reason":"expired_token"}`}
		srv := newTestServer(t, h)
		c := New(srv.URL, WithTokenProvider(StaticToken("abc")))

		res := c.CheckAuth(context.Background())
		assert.False(t, res.Success)
		assert.Nil(t, res.User)
		assert.Equal(t, "authentication failed: expired_token", res.Error)
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := New(srv.URL, WithTokenProvider(StaticToken("abc")))

		var res AuthResult
		require.NotPanics(t, func() { res = c.CheckAuth(context.Background()) })
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := &testHandler{body: `not json`}
		srv := newTestServer(t, h)
		c := New(srv.URL)

		res := c.CheckAuth(context.Background())
		assert.False(t, res.Success)
	})
}

func TestAdminHelpers(t *testing.T) {
	h := &testHandler{body: `{"token":"t1","expires_at":"2030-01-01T00:00:00Z","user":{"id":"u1","username":"coach"}}`}
	srv := newTestServer(t, h)
	c := New(srv.URL)
	ctx := context.Background()

	res, err := c.Login(ctx, "coach", "pw")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Token)
	assert.Equal(t, "/api/admin/login", h.last().URL.Path)
	assert.Equal(t, http.MethodPost, h.last().Method)

	h.reply(http.StatusOK, `{"key":"google_config","value":{"place_id":"p"}}`)
	raw, err := c.GetSetting(ctx, "google_config")
	require.NoError(t, err)
	assert.JSONEq(t, `{"place_id":"p"}`, string(raw))

	h.reply(http.StatusBadRequest, `{"error":"invalid setting value"}`)
	err = c.PutSetting(ctx, "google_config", json.RawMessage(`{"version":9}`))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid setting value", apiErr.Message)
	assert.Equal(t, http.MethodPut, h.last().Method)
}

func TestTokenProviders(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ACADEMY_TEST_TOKEN", "  from-env \n")
	tok, err := EnvToken("ACADEMY_TEST_TOKEN").Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	path := filepath.Join(t.TempDir(), "academy", "token")
	f := FileToken{Path: path}
	tok, err = f.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file is not an error")

	require.NoError(t, f.Save("from-file"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	tok, err = f.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	tok, err = Chain(EnvToken("ACADEMY_UNSET_TOKEN"), f).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	tok, err = Chain(EnvToken("ACADEMY_UNSET_TOKEN"), f).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestDefaultTokenPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	p, err := DefaultTokenPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/academy/token", p)
}
