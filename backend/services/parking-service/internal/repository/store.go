package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultTxTimeout   = 5 * time.Second
	uniqueViolationSQL = "23505"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements Querier over a pool or an open transaction.
type Queries struct {
	db DBTX
}

// NewQueries returns Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// Store runs units of work against Postgres.
type Store struct {
	db        *sql.DB
	txTimeout time.Duration
}

// NewStore returns a Postgres-backed store. Every unit of work is bounded by txTimeout.
func NewStore(db *sql.DB, txTimeout time.Duration) *Store {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &Store{db: db, txTimeout: txTimeout}
}

// Reader returns a Querier for non-transactional reads.
func (s *Store) Reader() Querier {
	return NewQueries(s.db)
}

// InTx executes fn inside a single transaction. The transaction commits only when fn
// returns nil; an error, a panic or the timeout rolls it back.
func (s *Store) InTx(ctx context.Context, fn TxFunc) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, NewQueries(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit tx: %w", err)
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
