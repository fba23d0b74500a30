package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clipbox/clipbox/internal/store"

	_ "modernc.org/sqlite"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenDB opens a SQLite database at path, configures WAL mode and pragmas,
// and applies the given schema.
func OpenDB(path, schema string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return db, nil
}

// TxDB implements store.Transactional on top of a *sql.DB.
//
// At most one explicit transaction is open at a time. While it is open,
// Reader and Write route through it; otherwise each Write runs in its own
// short transaction.
type TxDB struct {
	db *sql.DB

	mu       sync.Mutex
	tx       *sql.Tx
	onCommit []func()
}

// NewTxDB wraps db.
func NewTxDB(db *sql.DB) *TxDB {
	return &TxDB{db: db}
}

// DB returns the underlying database handle.
func (t *TxDB) DB() *sql.DB { return t.db }

// Close closes the database, rolling back any open transaction.
func (t *TxDB) Close() error {
	_ = t.CancelTransactionIfNeeded()
	return t.db.Close()
}

// BeginTransaction opens the explicit transaction.
// The transaction outlives ctx cancellation; only Commit or Cancel end it.
func (t *TxDB) BeginTransaction(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tx != nil {
		return store.ErrTransactionInProgress
	}
	tx, err := t.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	t.tx = tx
	t.onCommit = nil
	return nil
}

// CommitTransaction commits the explicit transaction and runs the hooks
// registered with OnCommit.
func (t *TxDB) CommitTransaction() error {
	t.mu.Lock()
	tx, hooks := t.tx, t.onCommit
	t.tx, t.onCommit = nil, nil
	t.mu.Unlock()

	if tx == nil {
		return store.ErrNoTransaction
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// CancelTransactionIfNeeded rolls back the explicit transaction if one is open.
func (t *TxDB) CancelTransactionIfNeeded() error {
	t.mu.Lock()
	tx := t.tx
	t.tx, t.onCommit = nil, nil
	t.mu.Unlock()

	if tx == nil {
		return nil
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// InTransaction reports whether the explicit transaction is open.
func (t *TxDB) InTransaction() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx != nil
}

// Reader returns the open transaction, or the database when none is open.
func (t *TxDB) Reader() Querier {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx != nil {
		return t.tx
	}
	return t.db
}

// Write runs fn inside the explicit transaction when one is open, or inside
// a transaction of its own that is committed when fn succeeds.
func (t *TxDB) Write(ctx context.Context, fn func(q Querier) error) error {
	t.mu.Lock()
	tx := t.tx
	t.mu.Unlock()

	if tx != nil {
		return fn(tx)
	}

	own, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(own); err != nil {
		_ = own.Rollback()
		return err
	}
	return own.Commit()
}

// OnCommit runs fn after the explicit transaction commits, or right away
// when none is open. Hooks are dropped when the transaction is cancelled.
func (t *TxDB) OnCommit(fn func()) {
	t.mu.Lock()
	if t.tx != nil {
		t.onCommit = append(t.onCommit, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// FormatTime formats a time.Time in UTC with nanoseconds for storage.
// The fraction is fixed-width so stored timestamps sort lexically.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ParseTime parses a RFC3339Nano string back to time.Time.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NullableString returns a sql.NullString from a *string.
func NullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr returns nil for a NULL column.
func StringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Placeholders returns "?, ?, ?" for n arguments.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Args converts ids to a []any for use with Placeholders.
func Args(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// IsUniqueViolation reports whether err is a SQLite uniqueness failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
