package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// TxFromContext retrieves the transaction stored by InTx, or nil when the
// context is not transaction-scoped.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// ConnFromContext returns the context-scoped transaction for use as a query
// target, or nil when the caller should fall back to the pool.
func ConnFromContext(ctx context.Context) pgx.Tx {
	return TxFromContext(ctx)
}

// InTx runs fn inside a database transaction. The transaction is placed on the
// context so repositories resolve their connection through TxFromContext and
// every statement issued by fn lands in the same transaction. A non-nil error
// from fn rolls the whole transaction back.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AcquireAdvisoryLock takes a transaction-scoped Postgres advisory lock on the
// given key. The lock is released automatically at commit or rollback, so it
// must be called from inside InTx. Concurrent callers for the same key are
// serialized; callers for different keys proceed in parallel.
func AcquireAdvisoryLock(ctx context.Context, key string) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("advisory lock requires a transaction-scoped context")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire advisory lock %q: %w", key, err)
	}
	return nil
}
