// ABOUTME: Generic query types, result records and store errors
// ABOUTME: Defines the Querier contract shared by SQLiteStore and transactions

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested record doesn't exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// StoreError wraps a failure from the underlying database.
// Op names the store operation that failed (e.g. "query", "list gallery images").
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapErr labels err with op, leaving sentinel errors untouched.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUsernameExists) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return &StoreError{Op: op, Err: se.Err}
	}
	return &StoreError{Op: op, Err: err}
}

// Query is a parameterized statement. Args are bound positionally to "?"
// placeholders in Text.
type Query struct {
	Text string
	Args []any
}

// Q builds a Query from text and positional arguments.
func Q(text string, args ...any) Query {
	return Query{Text: text, Args: args}
}

// Result reports the effect of an Exec.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Querier is the generic read/write contract.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Record, error)
	QueryOne(ctx context.Context, q Query) (Record, error)
	Exec(ctx context.Context, q Query) (Result, error)
}

// Record is an immutable snapshot of a single result row.
type Record struct {
	columns []string
	values  map[string]any
}

// NewRecord builds a record from parallel column and value slices.
func NewRecord(columns []string, values []any) Record {
	r := Record{
		columns: slices.Clone(columns),
		values:  make(map[string]any, len(columns)),
	}
	for i, col := range columns {
		if i < len(values) {
			r.values[col] = values[i]
		}
	}
	return r
}

// Columns returns the column names in result order.
func (r Record) Columns() []string {
	return slices.Clone(r.columns)
}

// Get returns the raw value for a column.
func (r Record) Get(col string) (any, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Map returns a copy of the record as a map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// String returns the column as a string. NULL and missing columns are "".
func (r Record) String(col string) string {
	switch v := r.values[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(timeLayout)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer. Non-numeric values are 0.
func (r Record) Int64(col string) int64 {
	switch v := r.values[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool treats any non-zero integer as true.
func (r Record) Bool(col string) bool {
	if v, ok := r.values[col].(bool); ok {
		return v
	}
	return r.Int64(col) != 0
}

// Time parses a timestamp column. NULL or unparseable values yield the zero time.
func (r Record) Time(col string) time.Time {
	if v, ok := r.values[col].(time.Time); ok {
		return v
	}
	t, err := parseTime(r.String(col))
	if err != nil {
		return time.Time{}
	}
	return t
}

// NullableTime is like Time but returns nil for NULL.
func (r Record) NullableTime(col string) *time.Time {
	if r.values[col] == nil {
		return nil
	}
	t := r.Time(col)
	if t.IsZero() {
		return nil
	}
	return &t
}

// timeLayout is fixed width so that text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
