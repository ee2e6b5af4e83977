package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pools, connections and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is what repositories need from the connection pool. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type TxManager struct {
	pool Pool
}

func NewTxManager(pool Pool) *TxManager {
	return &TxManager{pool: pool}
}

var _ Transactor = (*TxManager)(nil)

// WithinTransaction begins a transaction, stores it in the context handed to
// fn, and commits when fn returns nil. Any error or panic rolls back. Nested
// calls join the outer transaction.
func (tm *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	return err
}

// TxFromContext returns the transaction started by WithinTransaction, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// Executor picks the active transaction when there is one, otherwise the pool.
func Executor(ctx context.Context, pool Querier) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}
