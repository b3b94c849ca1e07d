// Package sqlstore is the platform's Postgres persistence layer: account,
// project, and API key CRUD; bulk log event inserts; error group and
// aggregate upserts. Grounded on the teacher's BeginTx/defer-Rollback/Commit
// transaction pattern.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store wraps a *sqlx.DB with the platform's query methods.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres via dsn and verifies connectivity.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, connMaxLifetimeSeconds int) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return &Store{db: db}, nil
}

// New wraps an already-open *sqlx.DB, used by tests with sqlmock.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

// IsUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), used to translate insert conflicts into
// errors.Conflict at the call site.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// ErrNoRows re-exports sql.ErrNoRows so callers don't need to import
// database/sql directly just to compare against it.
var ErrNoRows = sql.ErrNoRows
