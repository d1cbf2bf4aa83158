// ABOUTME: SQLite implementation of the Querier contract using modernc.org/sqlite
// ABOUTME: Handles open, schema creation, migrations, transactions and row scanning

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Options.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

const defaultBusyTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// Path is the database file. Parent directories are created if needed.
	Path string
	// Driver is DriverModernc (default) or DriverMattn.
	Driver string
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queries implements Querier and the typed helpers over any conn.
type queries struct {
	db     conn
	logger *slog.Logger
}

// SQLiteStore is the SQLite-backed record store.
type SQLiteStore struct {
	queries
	sqlDB  *sql.DB
	path   string
	driver string
}

// Tx is a transaction-scoped handle. It exposes the same operations as
// SQLiteStore and is only valid inside RunInTransaction.
type Tx struct {
	queries
}

var (
	_ Querier = (*SQLiteStore)(nil)
	_ Querier = (*Tx)(nil)
)

// Open creates or opens the SQLite database described by opts.
// The schema is automatically created if it doesn't exist.
func Open(opts Options) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driver, dsn(driver, opts.Path, busy))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := newSQLiteStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.path = opts.Path
	s.driver = driver

	logger.Info("SQLite store initialized", "path", opts.Path, "driver", driver)
	return s, nil
}

// newSQLiteStore applies pragmas, schema and migrations to an open handle.
func newSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	// WAL is persistent in the file, so setting it once on any connection is enough.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		queries: queries{db: db, logger: logger},
		sqlDB:   db,
	}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// dsn builds a connection string that applies per-connection pragmas to every
// connection the pool opens.
func dsn(driver, path string, busy time.Duration) string {
	ms := busy.Milliseconds()
	path = uriPathEscaper.Replace(path)
	if driver == DriverMattn {
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, ms)
	}
	v := url.Values{}
	v.Add("_pragma", "foreign_keys(1)")
	v.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
	return "file:" + path + "?" + v.Encode()
}

// uriPathEscaper percent-encodes the characters that end or escape the path
// part of an SQLite file: URI. SQLite decodes them back when opening.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS gallery_images (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			image_url   TEXT NOT NULL,
			category    TEXT NOT NULL DEFAULT 'general',
			is_active   INTEGER NOT NULL DEFAULT 1,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_gallery_active_created
			ON gallery_images(is_active, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_gallery_category
			ON gallery_images(category, is_active, created_at DESC);

		CREATE TABLE IF NOT EXISTS admin_settings (
			setting_key   TEXT PRIMARY KEY,
			setting_value TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS admin_users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS admin_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES admin_users(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires ON admin_sessions(expires_at);
	`

	_, err := s.sqlDB.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('admin_sessions') WHERE name = 'revoked_at'`,
			apply:  `ALTER TABLE admin_sessions ADD COLUMN revoked_at TEXT`,
			column: "admin_sessions.revoked_at",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('gallery_images') WHERE name = 'description'`,
			apply:  `ALTER TABLE gallery_images ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
			column: "gallery_images.description",
		},
	}

	for _, m := range migrations {
		rows, err := s.sqlDB.Query(m.check)
		if err != nil {
			return fmt.Errorf("checking column %s: %w", m.column, err)
		}
		exists := rows.Next()
		if err := rows.Close(); err != nil {
			return fmt.Errorf("checking column %s: %w", m.column, err)
		}
		if exists {
			continue
		}
		if _, err := s.sqlDB.Exec(m.apply); err != nil {
			return fmt.Errorf("adding column %s: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the database connection pool.
func (s *SQLiteStore) Close() error {
	return s.sqlDB.Close()
}

// RunInTransaction runs fn inside a single transaction. The transaction is
// committed when fn returns nil and rolled back otherwise. A panic in fn rolls
// back and re-panics.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin transaction", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	tx := &Tx{queries: queries{db: sqlTx, logger: s.logger}}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rolling back transaction", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

// Query runs a read and materializes every row.
func (q *queries) Query(ctx context.Context, query Query) ([]Record, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, &StoreError{Op: "query", Err: errors.New("empty query text")}
	}

	rows, err := q.db.QueryContext(ctx, query.Text, query.Args...)
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	defer func() { _ = rows.Close() }()

	records, err := scanRecords(rows, 0)
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return records, nil
}

// QueryOne returns the first row, or ErrNotFound when the query yields none.
func (q *queries) QueryOne(ctx context.Context, query Query) (Record, error) {
	if strings.TrimSpace(query.Text) == "" {
		return Record{}, &StoreError{Op: "query one", Err: errors.New("empty query text")}
	}

	rows, err := q.db.QueryContext(ctx, query.Text, query.Args...)
	if err != nil {
		return Record{}, &StoreError{Op: "query one", Err: err}
	}
	defer func() { _ = rows.Close() }()

	records, err := scanRecords(rows, 1)
	if err != nil {
		return Record{}, &StoreError{Op: "query one", Err: err}
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	return records[0], nil
}

// Exec runs a single write statement.
func (q *queries) Exec(ctx context.Context, query Query) (Result, error) {
	if strings.TrimSpace(query.Text) == "" {
		return Result{}, &StoreError{Op: "exec", Err: errors.New("empty query text")}
	}

	res, err := q.db.ExecContext(ctx, query.Text, query.Args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return Result{}, &StoreError{Op: "exec", Err: fmt.Errorf("%w: %v", errUniqueConstraint, err)}
		}
		return Result{}, &StoreError{Op: "exec", Err: err}
	}

	var out Result
	// Neither value is meaningful for every statement, so missing ones stay zero.
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

var errUniqueConstraint = errors.New("unique constraint violated")

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanRecords reads up to max rows (0 = all) into snapshots.
func scanRecords(rows *sql.Rows, max int) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		// Drivers may reuse byte buffers between rows.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = slices.Clone(b)
			}
		}
		records = append(records, NewRecord(cols, values))
		if max > 0 && len(records) >= max {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return records, nil
}
