// ABOUTME: Admin settings key/value rows holding JSON documents
// ABOUTME: One row per key, written with an upsert

package store

import (
	"context"
	"time"
)

// Setting is a raw admin_settings row. Value is JSON text; decoding is the
// caller's concern.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// GetSetting returns the setting stored under key, or ErrNotFound.
func (q *queries) GetSetting(ctx context.Context, key string) (*Setting, error) {
	r, err := q.QueryOne(ctx, Q(`
		SELECT setting_key, setting_value, updated_at
		FROM admin_settings
		WHERE setting_key = ?`, key))
	if err != nil {
		return nil, wrapErr("get setting", err)
	}
	return settingFromRecord(r), nil
}

// PutSetting inserts or replaces the value stored under key.
func (q *queries) PutSetting(ctx context.Context, key, value string) error {
	_, err := q.Exec(ctx, Q(`
		INSERT INTO admin_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	))
	if err != nil {
		return wrapErr("put setting", err)
	}

	q.logger.Info("stored setting", "key", key)
	return nil
}

// ListSettings returns every setting ordered by key.
func (q *queries) ListSettings(ctx context.Context) ([]*Setting, error) {
	records, err := q.Query(ctx, Q(`
		SELECT setting_key, setting_value, updated_at
		FROM admin_settings
		ORDER BY setting_key ASC`))
	if err != nil {
		return nil, wrapErr("list settings", err)
	}

	settings := make([]*Setting, 0, len(records))
	for _, r := range records {
		settings = append(settings, settingFromRecord(r))
	}
	return settings, nil
}

// DeleteSetting removes the row for key.
func (q *queries) DeleteSetting(ctx context.Context, key string) error {
	res, err := q.Exec(ctx, Q(`DELETE FROM admin_settings WHERE setting_key = ?`, key))
	if err != nil {
		return wrapErr("delete setting", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func settingFromRecord(r Record) *Setting {
	return &Setting{
		Key:       r.String("setting_key"),
		Value:     r.String("setting_value"),
		UpdatedAt: r.Time("updated_at"),
	}
}
