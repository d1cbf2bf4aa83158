// ABOUTME: Tests for the SQLite store open path and the generic query interface
// ABOUTME: Covers schema creation, positional binding, error wrapping and transactions

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, dbPath, s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.PutSetting(ctx, "k", `{"a":1}`))
	require.NoError(t, s.Close())

	// Schema creation and migrations must be idempotent.
	s, err = Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got.Value)
}

func TestDSN_EscapesPath(t *testing.T) {
	got := dsn(DriverModernc, "/data/odd?dir#1%2/test.db", time.Second)
	assert.Equal(t, "file:/data/odd%3fdir%231%252/test.db?_pragma=foreign_keys%281%29&_pragma=busy_timeout%281000%29", got)

	got = dsn(DriverMattn, "/data/a?b.db", 2*time.Second)
	assert.Equal(t, "file:/data/a%3fb.db?_foreign_keys=on&_busy_timeout=2000", got)
}

func TestOpen_PathWithURIMetacharacters(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "odd?dir#1%2", "test.db")
	ctx := context.Background()

	s, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.PutSetting(ctx, "k", `{"a":1}`))
	require.NoError(t, s.Close())

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created at the literal path")

	s, err = Open(Options{Path: dbPath})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got.Value)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)

	_, err = Open(Options{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	assert.ErrorContains(t, err, "unsupported sqlite driver")
}

func TestQuery_BindsPositionally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hostile := `x'; DROP TABLE admin_settings; --`
	_, err := s.Exec(ctx, Q(`INSERT INTO admin_settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?)`,
		hostile, `{}`, "2024-01-01T00:00:00.000000Z"))
	require.NoError(t, err)

	records, err := s.Query(ctx, Q(`SELECT setting_key FROM admin_settings WHERE setting_key = ?`, hostile))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, hostile, records[0].String("setting_key"))

	// Table still exists.
	_, err = s.ListSettings(ctx)
	assert.NoError(t, err)
}

func TestQuery_RecordsAreSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSetting(ctx, "a", `1`))
	require.NoError(t, s.PutSetting(ctx, "b", `2`))

	records, err := s.Query(ctx, Q(`SELECT setting_key, setting_value FROM admin_settings ORDER BY setting_key DESC`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"setting_key", "setting_value"}, records[0].Columns())
	assert.Equal(t, "b", records[0].String("setting_key"))
	assert.Equal(t, "a", records[1].String("setting_key"))

	m := records[0].Map()
	m["setting_key"] = "mutated"
	assert.Equal(t, "b", records[0].String("setting_key"))

	cols := records[0].Columns()
	cols[0] = "mutated"
	assert.Equal(t, "setting_key", records[0].Columns()[0])
}

func TestQueryOne_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QueryOne(context.Background(), Q(`SELECT * FROM admin_settings WHERE setting_key = ?`, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	var se *StoreError
	assert.False(t, errors.As(err, &se), "absence is not a store failure")
}

func TestQuery_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		op   string
	}{
		{"empty query", func() error { _, err := s.Query(ctx, Q("  ")); return err }, "query"},
		{"malformed query", func() error { _, err := s.Query(ctx, Q("SELEC nonsense")); return err }, "query"},
		{"unknown table", func() error { _, err := s.QueryOne(ctx, Q("SELECT * FROM nope")); return err }, "query one"},
		{"malformed exec", func() error { _, err := s.Exec(ctx, Q("UPDATE nope SET x = ?", 1)); return err }, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var se *StoreError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.op, se.Op)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestQuery_ClosedStore(t *testing.T) {
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ListGalleryImages(context.Background(), GalleryFilter{})
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list gallery images", se.Op)

	assert.Error(t, s.Ping(context.Background()))
}

func TestRunInTransaction_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx *Tx) error {
		if err := tx.PutSetting(ctx, "a", `1`); err != nil {
			return err
		}
		return tx.PutSetting(ctx, "b", `2`)
	})
	require.NoError(t, err)

	settings, err := s.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, 2)
}

func TestRunInTransaction_Rollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx *Tx) error {
		if err := tx.PutSetting(ctx, "a", `1`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetSetting(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunInTransaction_PanicRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.RunInTransaction(ctx, func(tx *Tx) error {
			_ = tx.PutSetting(ctx, "a", `1`)
			panic("boom")
		})
	})

	_, err := s.GetSetting(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_MattnDriver(t *testing.T) {
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "cgo.db"), Driver: DriverMattn})
	if err != nil {
		// go-sqlite3 is a stub without cgo.
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutSetting(ctx, "k", `{"v":true}`))
	got, err := s.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"v":true}`, got.Value)
}
