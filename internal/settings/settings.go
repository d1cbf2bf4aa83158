// ABOUTME: Typed JSON codec for admin settings stored as one document per key
// ABOUTME: Decode failures surface as ConfigDecodeError so callers can degrade gracefully

// Package settings decodes and encodes the JSON documents kept in the
// admin_settings table. Each key has a typed schema (see GoogleConfig) and
// callers go through Decode/Load instead of pulling fields out of raw JSON.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/academy-gateway/internal/store"
)

// ErrNotConfigured is returned by Load when no row exists for the key.
var ErrNotConfigured = errors.New("setting not configured")

// ErrEmptyValue is wrapped by ConfigDecodeError when the stored value is blank or null.
var ErrEmptyValue = errors.New("empty setting value")

// ConfigDecodeError reports a stored value that could not be decoded.
type ConfigDecodeError struct {
	Key string
	Err error
}

func (e *ConfigDecodeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("decoding setting: %v", e.Err)
	}
	return fmt.Sprintf("decoding setting %q: %v", e.Key, e.Err)
}

func (e *ConfigDecodeError) Unwrap() error {
	return e.Err
}

// Normalizer is implemented by schemas that fill defaults or check their
// version after decoding.
type Normalizer interface {
	Normalize() error
}

// Stamper is implemented by schemas that record their version explicitly
// when written to the store.
type Stamper interface {
	StampVersion()
}

// Reader is the slice of the store needed to load settings.
type Reader interface {
	GetSetting(ctx context.Context, key string) (*store.Setting, error)
}

// Writer is the slice of the store needed to save settings.
type Writer interface {
	PutSetting(ctx context.Context, key, value string) error
}

// Decode parses raw into T. key is only used for error reporting.
func Decode[T any](key, raw string) (T, error) {
	var v T

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, &ConfigDecodeError{Key: key, Err: ErrEmptyValue}
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, &ConfigDecodeError{Key: key, Err: err}
	}
	if n, ok := any(&v).(Normalizer); ok {
		if err := n.Normalize(); err != nil {
			return v, &ConfigDecodeError{Key: key, Err: err}
		}
	}
	return v, nil
}

// Encode serializes v to the stored string form.
func Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding setting: %w", err)
	}
	return string(data), nil
}

// Load fetches key from r and decodes it into T. A missing row yields
// ErrNotConfigured; store failures are returned unchanged.
func Load[T any](ctx context.Context, r Reader, key string) (T, error) {
	var zero T

	row, err := r.GetSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return zero, ErrNotConfigured
	}
	if err != nil {
		return zero, fmt.Errorf("loading setting %q: %w", key, err)
	}
	return Decode[T](key, row.Value)
}

// Save encodes v and upserts it under key. Pointer schemas are checked and
// version-stamped first.
func Save(ctx context.Context, w Writer, key string, v any) error {
	if n, ok := v.(Normalizer); ok {
		if err := n.Normalize(); err != nil {
			return err
		}
	}
	if st, ok := v.(Stamper); ok {
		st.StampVersion()
	}
	raw, err := Encode(v)
	if err != nil {
		return err
	}
	return w.PutSetting(ctx, key, raw)
}

// Validate checks a raw value before it is stored. Known keys must decode
// into their schema; any other key only needs to be a JSON document.
func Validate(key, raw string) (string, error) {
	if decode, ok := schemas[key]; ok {
		return decode(raw)
	}

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", &ConfigDecodeError{Key: key, Err: ErrEmptyValue}
	}
	if !json.Valid(trimmed) {
		return "", &ConfigDecodeError{Key: key, Err: errors.New("value is not valid JSON")}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", &ConfigDecodeError{Key: key, Err: err}
	}
	return compact.String(), nil
}

// schemas maps known keys to a decode-and-reencode function used by Validate.
var schemas = map[string]func(raw string) (string, error){
	GoogleConfigKey: reencode[GoogleConfig](GoogleConfigKey),
}

func reencode[T any](key string) func(string) (string, error) {
	return func(raw string) (string, error) {
		v, err := Decode[T](key, raw)
		if err != nil {
			return "", err
		}
		if st, ok := any(&v).(Stamper); ok {
			st.StampVersion()
		}
		return Encode(v)
	}
}
