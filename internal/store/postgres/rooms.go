package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// FindRoom implements store.Store.
func (s *Store) FindRoom(ctx context.Context, id store.RoomId, requirement store.RoomRequirement) (store.Room, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRow(ctx,
		`SELECT id, audience, opens_at, closes_at, backend_id FROM rooms WHERE id = $1`,
		roomUUID(id))

	var (
		rid      uuid.UUID
		audience string
		opensAt  pgTimestamp
		closesAt pgTimestamp
		backend  *uuid.UUID
	)
	if err := row.Scan(&rid, &audience, &opensAt, &closesAt, &backend); err != nil {
		if err == pgx.ErrNoRows {
			return store.Room{}, errs.New(errs.RoomNotFound, err).WithContext("room_id", id.String())
		}
		return store.Room{}, errs.FromStore(err)
	}

	room := store.Room{
		Id:       store.RoomId(rid),
		Audience: audience,
		Time:     store.RoomTime{OpensAt: opensAt.ptr, ClosesAt: closesAt.ptr},
	}
	if backend != nil {
		bid := store.BackendId(*backend)
		room.BackendBinding = &bid
	}

	now := s.clock.Now()
	switch requirement {
	case store.RoomOpen:
		if !room.Time.IsOpen(now) {
			return store.Room{}, errs.New(errs.RoomClosed, nil).WithContext("room_id", id.String())
		}
	case store.RoomNotClosed:
		if room.Time.IsFinished(now) {
			return store.Room{}, errs.New(errs.RoomClosed, nil).WithContext("room_id", id.String())
		}
	case store.RoomAny:
	}

	return room, nil
}
