// ABOUTME: Typed admin API calls built on Fetch: login, logout, settings
// ABOUTME: Non-2xx responses become *APIError

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIError is returned for non-2xx responses from the typed helpers.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Login exchanges credentials for a session token. The gateway also sets the
// session cookie, which the client's jar keeps.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	in := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/admin/logout", nil, nil)
}

// GetSetting returns the raw JSON stored under key.
func (c *Client) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var out struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/settings/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// PutSetting stores value (a JSON document) under key.
func (c *Client) PutSetting(ctx context.Context, key string, value json.RawMessage) error {
	return c.doJSON(ctx, http.MethodPut, "/api/admin/settings/"+url.PathEscape(key), value, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	resp, err := c.Fetch(ctx, method, path, bodyReader, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
