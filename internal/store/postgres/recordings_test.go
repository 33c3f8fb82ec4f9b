package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/netology-group/conferences/internal/store"
)

func TestRoomsFinishedWithInProgressRecordings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	s := &Store{}

	roomID := uuid.New()
	rtcID := uuid.New()
	backendID := uuid.New()
	backendAgentID := uuid.New()
	closesAt := time.Now().Add(-time.Minute)
	capacity := 20

	rows := pgxmock.NewRows([]string{
		"id", "audience", "opens_at", "closes_at",
		"id", "status", "started_at",
		"id", "agent_id", "session_id", "handle_id", "capacity", "reserve",
	}).AddRow(
		roomID, "example.audience", nil, closesAt,
		rtcID, "in_progress", nil,
		backendID, backendAgentID, "session-1", "handle-1", &capacity, (*int)(nil),
	)

	mock.ExpectQuery("FROM rooms r").WillReturnRows(rows)

	finished, err := s.RoomsFinishedWithInProgressRecordings(setupMockContext(mock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(finished) != 1 {
		t.Fatalf("len(finished) = %d, want 1", len(finished))
	}
	if finished[0].Room.Id != store.RoomId(roomID) {
		t.Errorf("room id = %v", finished[0].Room.Id)
	}
	if finished[0].Backend.Capacity == nil || *finished[0].Backend.Capacity != capacity {
		t.Errorf("backend capacity = %v", finished[0].Backend.Capacity)
	}
}

func TestSetRecordingStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	s := &Store{}
	rtcID := store.NewRtcId()
	startedAt := time.Now()
	segments := []store.Segment{{StartMs: 0, EndMs: 1000}}

	mock.ExpectExec("UPDATE recordings SET status").
		WithArgs(rtcUUID(rtcID), string(store.RecordingReady), []byte(`[[0,1000]]`), &startedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.SetRecordingStatus(setupMockContext(mock), rtcID, store.RecordingReady, segments, &startedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
