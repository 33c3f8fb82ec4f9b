package store

import (
	"context"
	"time"
)

// Tx is the transactional handle passed into WithTx. Only the vacuum handler
// opens one; every other call goes through Store directly.
type Tx interface {
	// DeleteAgentsInRoom deletes every agent-in-room row for room within the
	// open transaction.
	DeleteAgentsInRoom(ctx context.Context, room RoomId) error
}

// PoolStats reports the current state of the store's connection pool.
type PoolStats struct {
	Size int
	Idle int
}

// Store is every operation the core requires of the persistent room/agent
// store (C2). internal/store/postgres is the production implementation;
// tests substitute a pgxmock-backed Store or a hand-written fake.
type Store interface {
	// FindRoom returns the room identified by id, subject to requirement.
	// Returns an *errs.AppError of kind RoomNotFound or RoomClosed when the
	// requirement is not met.
	FindRoom(ctx context.Context, id RoomId, requirement RoomRequirement) (Room, error)

	// AssertPresence returns an *errs.AppError of kind
	// AgentNotEnteredTheRoom when no row with status=ready exists for
	// (agent, room).
	AssertPresence(ctx context.Context, room RoomId, agent AgentId) error

	// UpsertAgent inserts an in_progress agent-in-room row, or if one
	// already exists for (agentID, roomID), resets it to in_progress. This
	// is the idempotent presence-insert the spec requires.
	UpsertAgent(ctx context.Context, agentID AgentId, roomID RoomId) (AgentInRoom, error)

	// SetAgentStatus updates the presence status for (agentID, roomID).
	SetAgentStatus(ctx context.Context, agentID AgentId, roomID RoomId, status AgentStatus) error

	// RoomsFinishedWithInProgressRecordings returns one row per (room,
	// rtc, recording, backend) where the room's closes_at <= now and the
	// recording is still in_progress.
	RoomsFinishedWithInProgressRecordings(ctx context.Context) ([]FinishedRecording, error)

	// DeleteAgentsInRoom deletes every agent-in-room row for room, outside
	// of any transaction.
	DeleteAgentsInRoom(ctx context.Context, room RoomId) error

	// SetRecordingStatus transitions a recording's status and, when
	// applicable, its segments and started_at.
	SetRecordingStatus(ctx context.Context, rtc RtcId, status RecordingStatus, segments []Segment, startedAt *time.Time) error

	// CountBackends returns the number of online backends.
	CountBackends(ctx context.Context) (int, error)

	// SumBackendCapacity returns the sum of capacity across online backends.
	SumBackendCapacity(ctx context.Context) (int, error)

	// BackendReserveLoad returns, per backend id, the reserve count and the
	// actual agent load.
	BackendReserveLoad(ctx context.Context) (map[BackendId]BackendLoad, error)

	// ConnectedAgentsCount returns the count of agents with status=ready
	// across all rooms.
	ConnectedAgentsCount(ctx context.Context) (int, error)

	// SetRtcReaderConfig upserts the reader's subscription override for rtc.
	SetRtcReaderConfig(ctx context.Context, rtc RtcId, reader AgentId, availability ReaderAvailability) error

	// ListRtcReaderConfigs returns every reader override recorded for rtc.
	ListRtcReaderConfigs(ctx context.Context, rtc RtcId) ([]RtcReaderConfig, error)

	// PoolStats reports the connection pool's current size and idle count.
	PoolStats(ctx context.Context) (PoolStats, error)

	// WithTx runs fn inside one transaction, used only by the vacuum
	// handler so the per-room agent-delete is atomic with the rest of the
	// close pass's bookkeeping.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// BackendLoad is the reserve/agent load pair reported per backend for C7.
type BackendLoad struct {
	Reserve int
	Agents  int
}
