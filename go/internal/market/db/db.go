package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries is the Postgres implementation of Querier.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

var _ Querier = (*Queries)(nil)

// SQLStore runs queries against a *sql.DB and opens transactions on it.
type SQLStore struct {
	*Queries
	conn *sql.DB
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{Queries: New(conn), conn: conn}
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) ExecTx(ctx context.Context, opts TxOptions, fn func(q Querier) error) error {
	return sqlutil.Run(ctx, s.conn,
		&sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly},
		func(tx *sql.Tx) Querier { return s.Queries.WithTx(tx) },
		fn,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// one maps sql.ErrNoRows to ErrNotFound.
func one(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", what, err)
	}
	return nil
}

// insertErr maps unique violations to ErrAlreadyExists.
func insertErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if sqlutil.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, ErrAlreadyExists)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

// affected reports whether exactly one row was changed.
func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
