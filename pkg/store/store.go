// Package store persists the pipeline entities. It knows nothing about
// callers or ownership; services in the entity packages enforce those
// rules on top of it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/metrics"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
)

const (
	tableUsers      = "users"
	tableICPs       = "icps"
	tableLeads      = "leads"
	tableReports    = "pre_call_reports"
	tableEmails     = "emails"
	tableSearchJobs = "search_jobs"

	colID        = "id"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"

	defaultTxAttempts = 5
)

// conn is satisfied by both *sql.DB and *sql.Tx
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Store reads and writes entity rows
type Store struct {
	db       *sql.DB
	conn     conn
	dialect  string
	clock    *clock
	attempts int
	metrics  *metrics.Metrics
	inTx     bool
}

// Option configures a Store
type Option func(*Store)

// WithTxAttempts bounds how many times a conflicting transaction is run
func WithTxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithMetrics records transaction retries on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock.now = now }
}

// New creates a store over db speaking the given ent dialect
func New(db *sql.DB, dialectName string, opts ...Option) *Store {
	s := &Store{
		db:       db,
		conn:     db,
		dialect:  dialectName,
		clock:    &clock{now: time.Now},
		attempts: defaultTxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current wall-clock time
func (s *Store) Now() time.Time {
	return s.clock.now()
}

// WithTx runs fn inside one transaction. On Postgres the transaction is
// serializable; serialization failures, deadlocks and SQLite lock errors
// are retried with backoff. Calls nested inside fn reuse the outer
// transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	var opts *sql.TxOptions
	if s.dialect == dialect.Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, opts, fn)
		reason, retryable := retryReason(err)
		if !retryable || attempt >= s.attempts {
			return err
		}
		s.metrics.RecordTxRetry(reason)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *Store) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := *s
	txStore.conn = tx
	txStore.inTx = true

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	base := time.Duration(5<<attempt) * time.Millisecond
	return base + time.Duration(rand.Int64N(int64(base)))
}

func retryReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return "serialization", true
		case "40P01":
			return "deadlock", true
		}
		return "", false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return "busy", true
		}
	}
	return "", false
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// clock issues strictly increasing timestamps so creation order is total
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UnixNano()
	if t <= c.last {
		t = c.last + 1
	}
	c.last = t
	return t
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) selectFrom(table string, columns ...string) *entsql.Selector {
	return s.builder().Select(columns...).From(s.builder().Table(table))
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryAll[T any](ctx context.Context, s *Store, sel *entsql.Selector, scan func(scanner) (T, error)) ([]T, error) {
	query, args := sel.Query()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// queryFirst returns the zero value of T when no row matches
func queryFirst[T any](ctx context.Context, s *Store, sel *entsql.Selector, scan func(scanner) (T, error)) (T, error) {
	var zero T
	out, err := queryAll(ctx, s, sel.Limit(1), scan)
	if err != nil || len(out) == 0 {
		return zero, err
	}
	return out[0], nil
}

func (s *Store) count(ctx context.Context, table string, where *entsql.Predicate) (int, error) {
	sel := s.selectFrom(table, entsql.Count("*")).Where(where)
	counts, err := queryAll(ctx, s, sel, func(sc scanner) (int, error) {
		var n int
		err := sc.Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

func (s *Store) exists(ctx context.Context, table string, where *entsql.Predicate) (bool, error) {
	sel := s.selectFrom(table, colID).Where(where)
	id, err := queryFirst(ctx, s, sel, func(sc scanner) (string, error) {
		var id string
		err := sc.Scan(&id)
		return id, err
	})
	return id != "", err
}

// page selects up to n rows after the given position, ordered by
// (created_at, id)
func (s *Store) page(table string, columns []string, preds []*entsql.Predicate, after *pagination.Position, n int) *entsql.Selector {
	if after != nil {
		preds = append(preds, entsql.Or(
			entsql.GT(colCreatedAt, after.CreatedAt),
			entsql.And(
				entsql.EQ(colCreatedAt, after.CreatedAt),
				entsql.GT(colID, after.ID),
			),
		))
	}

	sel := s.selectFrom(table, columns...)
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	return sel.OrderBy(entsql.Asc(colCreatedAt), entsql.Asc(colID)).Limit(n)
}

// Position returns the pagination position of a row
func Position(createdAt time.Time, id string) pagination.Position {
	return pagination.Position{CreatedAt: createdAt.UnixNano(), ID: id}
}

func newID() string {
	return uuid.NewString()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := fromNanos(ni.Int64)
	return &t
}

func nanosOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
