// Package postgres implements store.Store directly on jackc/pgx/v5, without
// an ORM, grounded on longregen-alicia's BaseRepository/TransactionManager
// pattern: every query resolves its connection from context, transparently
// joining a transaction opened by WithTx.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netology-group/conferences/internal/clock"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

const defaultQueryTimeout = 10 * time.Second

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type contextKey string

const txKey contextKey = "pgx_tx"

// Store is the Postgres-backed store.Store implementation.
type Store struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// New wraps an already-connected pool with the real clock.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, clock: clock.Real{}}
}

// NewWithClock wraps an already-connected pool with a test-injected clock,
// so find_room's opens_at/closes_at comparisons are deterministic.
func NewWithClock(pool *pgxpool.Pool, c clock.Clock) *Store {
	return &Store{pool: pool, clock: c}
}

// Connect opens a pool against dsn and verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, clock: clock.Real{}}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// conn resolves the appropriate querier for ctx: the enclosing transaction
// when one was opened by WithTx, otherwise the pool directly.
func (s *Store) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// tx adapts a pgx.Tx to store.Tx for use inside WithTx callbacks.
type tx struct {
	pgx pgx.Tx
}

func (t *tx) DeleteAgentsInRoom(ctx context.Context, room store.RoomId) error {
	_, err := t.pgx.Exec(ctx, `DELETE FROM agents_in_room WHERE room_id = $1`, roomUUID(room))
	if err != nil {
		return errs.FromStore(err)
	}
	return nil
}
