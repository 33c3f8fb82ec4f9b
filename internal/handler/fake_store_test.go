package handler

import (
	"context"
	"time"

	"github.com/netology-group/conferences/internal/authz"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// fakeStore is a minimal in-memory store.Store covering exactly what the
// handler tests in this package exercise.
type fakeStore struct {
	rooms           map[store.RoomId]store.Room
	presence        map[store.RoomId]map[store.AgentId]store.AgentStatus
	finished        []store.FinishedRecording
	deletedRooms    []store.RoomId
	readerConfigs   map[store.RtcId][]store.RtcReaderConfig
	onlineBackends  int
	totalCapacity   int
	connectedAgents int
	backendLoad     map[store.BackendId]store.BackendLoad
	withTxErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:         make(map[store.RoomId]store.Room),
		presence:      make(map[store.RoomId]map[store.AgentId]store.AgentStatus),
		readerConfigs: make(map[store.RtcId][]store.RtcReaderConfig),
		backendLoad:   make(map[store.BackendId]store.BackendLoad),
	}
}

func (f *fakeStore) putRoom(room store.Room) { f.rooms[room.Id] = room }

func (f *fakeStore) putPresence(room store.RoomId, agent store.AgentId, status store.AgentStatus) {
	if f.presence[room] == nil {
		f.presence[room] = make(map[store.AgentId]store.AgentStatus)
	}
	f.presence[room][agent] = status
}

func (f *fakeStore) FindRoom(ctx context.Context, id store.RoomId, requirement store.RoomRequirement) (store.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return store.Room{}, errs.New(errs.RoomNotFound, nil)
	}
	return room, nil
}

func (f *fakeStore) AssertPresence(ctx context.Context, room store.RoomId, agent store.AgentId) error {
	status, ok := f.presence[room][agent]
	if !ok || status != store.AgentReady {
		return errs.New(errs.AgentNotEnteredTheRoom, nil)
	}
	return nil
}

func (f *fakeStore) UpsertAgent(ctx context.Context, agentID store.AgentId, roomID store.RoomId) (store.AgentInRoom, error) {
	f.putPresence(roomID, agentID, store.AgentInProgress)
	return store.AgentInRoom{AgentId: agentID, RoomId: roomID, Status: store.AgentInProgress}, nil
}

func (f *fakeStore) SetAgentStatus(ctx context.Context, agentID store.AgentId, roomID store.RoomId, status store.AgentStatus) error {
	f.putPresence(roomID, agentID, status)
	return nil
}

func (f *fakeStore) RoomsFinishedWithInProgressRecordings(ctx context.Context) ([]store.FinishedRecording, error) {
	return f.finished, nil
}

func (f *fakeStore) DeleteAgentsInRoom(ctx context.Context, room store.RoomId) error {
	f.deletedRooms = append(f.deletedRooms, room)
	delete(f.presence, room)
	return nil
}

func (f *fakeStore) SetRecordingStatus(ctx context.Context, rtc store.RtcId, status store.RecordingStatus, segments []store.Segment, startedAt *time.Time) error {
	return nil
}

func (f *fakeStore) CountBackends(ctx context.Context) (int, error) { return f.onlineBackends, nil }

func (f *fakeStore) SumBackendCapacity(ctx context.Context) (int, error) { return f.totalCapacity, nil }

func (f *fakeStore) BackendReserveLoad(ctx context.Context) (map[store.BackendId]store.BackendLoad, error) {
	return f.backendLoad, nil
}

func (f *fakeStore) ConnectedAgentsCount(ctx context.Context) (int, error) { return f.connectedAgents, nil }

func (f *fakeStore) SetRtcReaderConfig(ctx context.Context, rtc store.RtcId, reader store.AgentId, availability store.ReaderAvailability) error {
	f.readerConfigs[rtc] = append(f.readerConfigs[rtc], store.RtcReaderConfig{RtcId: rtc, ReaderId: reader, Availability: availability})
	return nil
}

func (f *fakeStore) ListRtcReaderConfigs(ctx context.Context, rtc store.RtcId) ([]store.RtcReaderConfig, error) {
	return f.readerConfigs[rtc], nil
}

func (f *fakeStore) PoolStats(ctx context.Context) (store.PoolStats, error) {
	return store.PoolStats{}, nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if f.withTxErr != nil {
		return f.withTxErr
	}
	return fn(ctx, &fakeTx{store: f})
}

type fakeTx struct{ store *fakeStore }

func (t *fakeTx) DeleteAgentsInRoom(ctx context.Context, room store.RoomId) error {
	return t.store.DeleteAgentsInRoom(ctx, room)
}

// fakePool runs fn inline, synchronously, with no concurrency bound.
type fakePool struct{}

func (fakePool) Run(ctx context.Context, fn func() error) error { return fn() }

// fakeAuthz implements authz.Gate, allowing or denying by a fixed policy.
type fakeAuthz struct {
	allow bool
	err   error
}

func (a fakeAuthz) Authorize(ctx context.Context, audience string, subject authz.Subject, path authz.ObjectPath, action authz.Action) error {
	if a.err != nil {
		return a.err
	}
	if !a.allow {
		return errs.New(errs.AccessDenied, nil)
	}
	return nil
}
