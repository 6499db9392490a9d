package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// PairTxRunner runs work for one unordered user pair inside a transaction
// holding a transaction-scoped advisory lock on that pair. Concurrent
// submissions for the same pair are serialized; other pairs are unaffected.
type PairTxRunner struct {
	pool *pgxpool.Pool
}

func NewPairTxRunner(pool *pgxpool.Pool) *PairTxRunner {
	return &PairTxRunner{pool: pool}
}

func (r *PairTxRunner) WithPairTx(ctx context.Context, pair model.Pair, fn func(context.Context, pgx.Tx) error) error {
	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, PairLockKey(pair)); err != nil {
			return fmt.Errorf("lock pair %s: %w", pair, err)
		}
		return fn(txCtx, tx)
	})
}

func PairLockKey(pair model.Pair) string {
	return "like-pair:" + pair.String()
}
