package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// AssertPresence implements store.Store.
func (s *Store) AssertPresence(ctx context.Context, room store.RoomId, agent store.AgentId) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM agents_in_room WHERE room_id = $1 AND agent_id = $2 AND status = 'ready')`,
		roomUUID(room), agentUUID(agent)).Scan(&exists)
	if err != nil {
		return errs.FromStore(err)
	}
	if !exists {
		return errs.New(errs.AgentNotEnteredTheRoom, nil).
			WithContext("room_id", room.String()).
			WithContext("agent_id", agent.String())
	}
	return nil
}

// UpsertAgent implements store.Store. Grounded on the original's
// InsertQuery.execute, an INSERT ... ON CONFLICT (agent_id, room_id) DO
// UPDATE that always resets the row to in_progress — this is what makes
// inserting the same (agent, room) pair twice idempotent (§8).
func (s *Store) UpsertAgent(ctx context.Context, agentID store.AgentId, roomID store.RoomId) (store.AgentInRoom, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO agents_in_room (agent_id, room_id, status, created_at)
		VALUES ($1, $2, 'in_progress', now())
		ON CONFLICT (agent_id, room_id) DO UPDATE SET status = 'in_progress'
		RETURNING agent_id, room_id, status, created_at`,
		agentUUID(agentID), roomUUID(roomID))

	var air store.AgentInRoom
	var rawAgent, rawRoom [16]byte
	var status string
	if err := row.Scan(&rawAgent, &rawRoom, &status, &air.CreatedAt); err != nil {
		return store.AgentInRoom{}, errs.FromStore(err)
	}
	air.AgentId = agentID
	air.RoomId = roomID
	air.Status = store.AgentStatus(status)
	return air, nil
}

// SetAgentStatus implements store.Store.
func (s *Store) SetAgentStatus(ctx context.Context, agentID store.AgentId, roomID store.RoomId, status store.AgentStatus) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE agents_in_room SET status = $3 WHERE agent_id = $1 AND room_id = $2`,
		agentUUID(agentID), roomUUID(roomID), string(status))
	if err != nil {
		return errs.FromStore(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.AgentNotEnteredTheRoom, pgx.ErrNoRows)
	}
	return nil
}

// DeleteAgentsInRoom implements store.Store, run outside any transaction.
func (s *Store) DeleteAgentsInRoom(ctx context.Context, room store.RoomId) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	_, err := s.conn(ctx).Exec(ctx, `DELETE FROM agents_in_room WHERE room_id = $1`, roomUUID(room))
	if err != nil {
		return errs.FromStore(err)
	}
	return nil
}

// ConnectedAgentsCount implements store.Store.
func (s *Store) ConnectedAgentsCount(ctx context.Context) (int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var count int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM agents_in_room WHERE status = 'ready'`).Scan(&count)
	if err != nil {
		return 0, errs.FromStore(err)
	}
	return count, nil
}
