// Package store provides persistent storage for the academy gateway using SQLite.
//
// # Architecture
//
// Every read and write goes through a small generic interface:
//
//   - Query: fetch many rows, fully materialized in the order of the query's ORDER BY
//   - QueryOne: fetch at most one row, ErrNotFound when absent
//   - Exec: a single atomic write
//
// Callers pass a Query value holding the SQL text and a positional argument list.
// Arguments are always bound through "?" placeholders and never spliced into the
// text, so user input cannot change the shape of a statement.
//
// The typed helpers (gallery images, admin settings, admin users and sessions) are
// thin wrappers over the same three calls. They are defined on an unexported
// queries type that is embedded by both SQLiteStore and the transaction handle, so
// every helper is available inside RunInTransaction as well.
//
// # Data Models
//
//   - Record: an immutable snapshot of one result row (column name to value)
//   - GalleryImage: a public gallery entry, soft-deleted through is_active
//   - Setting: a JSON document stored under a short key (e.g. google_config)
//   - AdminUser / AdminSession: admin accounts and their server-side sessions
//
// # Errors
//
// Failures from the database (malformed SQL, closed handle, scan failures) are
// returned as *StoreError carrying the operation name. Absence is reported with
// ErrNotFound, which callers test with errors.Is:
//
//	img, err := s.GetGalleryImage(ctx, id)
//	if errors.Is(err, store.ErrNotFound) {
//	    // 404
//	}
//
// # Drivers
//
// The default driver is modernc.org/sqlite (pure Go). Options.Driver may select
// "sqlite3" to use github.com/mattn/go-sqlite3 when cgo is available.
//
// # Concurrency
//
// SQLiteStore wraps a database/sql pool. Each call checks a connection out of the
// pool for its own duration and returns it afterwards, so no request holds a
// long-lived handle. WAL mode lets readers proceed while a write is in flight.
package store
