package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// ErrTxTimeout is returned when a transaction cannot finish before its
// deadline. The transaction is rolled back.
var ErrTxTimeout = errors.New("transaction timed out")

// WithTx stores tx in ctx so repositories join it.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// TxFromContext returns the transaction stored by WithTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// TxRunner runs fn inside one transaction. The context passed to fn carries
// the transaction; any error from fn rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTxRunner opens REPEATABLE READ transactions with synchronous commit,
// bounded by Timeout.
type PoolTxRunner struct {
	pool    *pgxpool.Pool
	Timeout time.Duration
}

func NewTxRunner(pool *pgxpool.Pool, timeout time.Duration) *PoolTxRunner {
	return &PoolTxRunner{pool: pool, Timeout: timeout}
}

func (r *PoolTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return timeoutOr(txCtx, fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			// txCtx may already be expired; rollback must still reach the server.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err := tx.Exec(txCtx, "SET LOCAL synchronous_commit TO on"); err != nil {
		return timeoutOr(txCtx, fmt.Errorf("set synchronous_commit: %w", err))
	}

	if err := fn(WithTx(txCtx, tx)); err != nil {
		return timeoutOr(txCtx, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return timeoutOr(txCtx, fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	return nil
}

// timeoutOr marks err as ErrTxTimeout when the transaction deadline caused it.
// The original error stays reachable through errors.Is and errors.As.
func timeoutOr(txCtx context.Context, err error) error {
	if errors.Is(err, ErrTxTimeout) {
		return err
	}
	if IsTimeout(err) || errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTxTimeout, err)
	}
	return err
}
