package postgres

import (
	"context"
	"fmt"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// WithTx runs fn inside one transaction. Only the vacuum handler calls this;
// every other Store method runs autocommit through the pool.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.FromStore(fmt.Errorf("begin transaction: %w", err))
	}

	txCtx := context.WithValue(ctx, txKey, pgxTx)

	defer func() {
		if r := recover(); r != nil {
			_ = pgxTx.Rollback(ctx)
			panic(r)
		}
	}()

	if err = fn(txCtx, &tx{pgx: pgxTx}); err != nil {
		if rbErr := pgxTx.Rollback(ctx); rbErr != nil {
			return errs.FromStore(fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr))
		}
		return err
	}

	if err = pgxTx.Commit(ctx); err != nil {
		return errs.FromStore(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
