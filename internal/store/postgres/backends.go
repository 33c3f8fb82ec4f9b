package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// CountBackends implements store.Store.
func (s *Store) CountBackends(ctx context.Context) (int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var count int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM backends`).Scan(&count); err != nil {
		return 0, errs.FromStore(err)
	}
	return count, nil
}

// SumBackendCapacity implements store.Store.
func (s *Store) SumBackendCapacity(ctx context.Context) (int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var sum int
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT coalesce(sum(capacity), 0) FROM backends`).Scan(&sum); err != nil {
		return 0, errs.FromStore(err)
	}
	return sum, nil
}

// BackendReserveLoad implements store.Store.
func (s *Store) BackendReserveLoad(ctx context.Context) (map[store.BackendId]store.BackendLoad, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT b.id, coalesce(b.reserve, 0),
		       (SELECT count(*) FROM rooms r JOIN agents_in_room a ON a.room_id = r.id
		        WHERE r.backend_id = b.id AND a.status = 'ready')
		FROM backends b`)
	if err != nil {
		return nil, errs.FromStore(err)
	}
	defer rows.Close()

	out := make(map[store.BackendId]store.BackendLoad)
	for rows.Next() {
		var id uuid.UUID
		var reserve, agents int
		if err := rows.Scan(&id, &reserve, &agents); err != nil {
			return nil, errs.FromStore(err)
		}
		out[store.BackendId(id)] = store.BackendLoad{Reserve: reserve, Agents: agents}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FromStore(err)
	}
	return out, nil
}
