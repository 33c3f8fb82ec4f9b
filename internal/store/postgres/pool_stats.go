package postgres

import (
	"context"

	"github.com/netology-group/conferences/internal/store"
)

// PoolStats implements store.Store, read directly from pgxpool's own stat
// snapshot (no query issued).
func (s *Store) PoolStats(ctx context.Context) (store.PoolStats, error) {
	stat := s.pool.Stat()
	return store.PoolStats{
		Size: int(stat.TotalConns()),
		Idle: int(stat.IdleConns()),
	}, nil
}
