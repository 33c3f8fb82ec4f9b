package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/netology-group/conferences/internal/store"
)

// fakeStore is a minimal store.Store covering exactly what Aggregator.Sample
// polls live; every other method is unreachable from these tests.
type fakeStore struct {
	poolStats       store.PoolStats
	poolErr         error
	onlineBackends  int
	totalCapacity   int
	connectedAgents int
	backendLoad     map[store.BackendId]store.BackendLoad
	backendLoadErr  error
}

func (f *fakeStore) FindRoom(ctx context.Context, id store.RoomId, requirement store.RoomRequirement) (store.Room, error) {
	return store.Room{}, nil
}
func (f *fakeStore) AssertPresence(ctx context.Context, room store.RoomId, agent store.AgentId) error {
	return nil
}
func (f *fakeStore) UpsertAgent(ctx context.Context, agentID store.AgentId, roomID store.RoomId) (store.AgentInRoom, error) {
	return store.AgentInRoom{}, nil
}
func (f *fakeStore) SetAgentStatus(ctx context.Context, agentID store.AgentId, roomID store.RoomId, status store.AgentStatus) error {
	return nil
}
func (f *fakeStore) RoomsFinishedWithInProgressRecordings(ctx context.Context) ([]store.FinishedRecording, error) {
	return nil, nil
}
func (f *fakeStore) DeleteAgentsInRoom(ctx context.Context, room store.RoomId) error { return nil }
func (f *fakeStore) SetRecordingStatus(ctx context.Context, rtc store.RtcId, status store.RecordingStatus, segments []store.Segment, startedAt *time.Time) error {
	return nil
}
func (f *fakeStore) CountBackends(ctx context.Context) (int, error) { return f.onlineBackends, nil }
func (f *fakeStore) SumBackendCapacity(ctx context.Context) (int, error) {
	return f.totalCapacity, nil
}
func (f *fakeStore) BackendReserveLoad(ctx context.Context) (map[store.BackendId]store.BackendLoad, error) {
	if f.backendLoadErr != nil {
		return nil, f.backendLoadErr
	}
	return f.backendLoad, nil
}
func (f *fakeStore) ConnectedAgentsCount(ctx context.Context) (int, error) {
	return f.connectedAgents, nil
}
func (f *fakeStore) SetRtcReaderConfig(ctx context.Context, rtc store.RtcId, reader store.AgentId, availability store.ReaderAvailability) error {
	return nil
}
func (f *fakeStore) ListRtcReaderConfigs(ctx context.Context, rtc store.RtcId) ([]store.RtcReaderConfig, error) {
	return nil, nil
}
func (f *fakeStore) PoolStats(ctx context.Context) (store.PoolStats, error) {
	if f.poolErr != nil {
		return store.PoolStats{}, f.poolErr
	}
	return f.poolStats, nil
}
func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return fn(ctx, nil)
}

func TestAggregator_Sample_HappyPath(t *testing.T) {
	bid := store.BackendId(store.NewRoomId())
	fs := &fakeStore{
		poolStats:       store.PoolStats{Size: 10, Idle: 7},
		onlineBackends:  2,
		totalCapacity:   50,
		connectedAgents: 4,
		backendLoad:     map[store.BackendId]store.BackendLoad{bid: {Reserve: 3, Agents: 2}},
	}

	snap := NewAggregator(fs).Sample(context.Background())

	if snap.StorePoolSize != 10 || snap.StorePoolIdle != 7 {
		t.Errorf("pool stats = %+v", snap)
	}
	if snap.BackendsOnline != 2 || snap.BackendsCapacityTotal != 50 {
		t.Errorf("backend totals = %+v", snap)
	}
	if snap.ConnectedAgents != 4 {
		t.Errorf("connected agents = %d, want 4", snap.ConnectedAgents)
	}
	if len(snap.BackendLoad) != 1 || snap.BackendLoad[0].Reserve != 3 || snap.BackendLoad[0].Agents != 2 {
		t.Errorf("backend load = %+v", snap.BackendLoad)
	}
	if len(snap.Errors) != 0 {
		t.Errorf("expected no source errors, got %+v", snap.Errors)
	}
}

func TestAggregator_Sample_PartialFailureIsolated(t *testing.T) {
	fs := &fakeStore{
		poolErr:         errors.New("pool unavailable"),
		onlineBackends:  1,
		totalCapacity:   10,
		connectedAgents: 2,
	}

	snap := NewAggregator(fs).Sample(context.Background())

	if snap.Errors["store_pool"] == nil {
		t.Error("expected store_pool error to be recorded")
	}
	if snap.BackendsOnline != 1 || snap.ConnectedAgents != 2 {
		t.Errorf("other sources should still populate, got %+v", snap)
	}
}

func TestHistogramPercentiles_Derivation(t *testing.T) {
	HandlerDuration.Reset()
	HandlerDuration.WithLabelValues("test.method").Observe(0.05)
	HandlerDuration.WithLabelValues("test.method").Observe(0.2)
	HandlerDuration.WithLabelValues("test.method").Observe(1.5)

	durations := collectHandlerDurationPercentiles()
	var found bool
	for _, d := range durations {
		if d.Method != "test.method" {
			continue
		}
		found = true
		if d.P95 <= 0 || d.P99 <= 0 {
			t.Errorf("expected positive percentiles, got %+v", d)
		}
		if d.Max <= 0 {
			t.Errorf("expected positive max, got %+v", d)
		}
	}
	if !found {
		t.Fatal("expected test.method to appear in handler durations")
	}
}
