package handler

import (
	"testing"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

func newTestDepsWithAuthz(fs *fakeStore, authz fakeAuthz) *Deps {
	d := newTestDeps(fs)
	d.Authz = authz
	return d
}

// S5: vacuum happy path.
func TestVacuumHandler_HappyPath(t *testing.T) {
	fs := newFakeStore()
	room1 := store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"}
	room2 := store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"}
	backend := store.Backend{Id: store.BackendId(store.NewRoomId()), AgentId: newAgentId(), Session: "S", Handle: "H"}
	rtc1 := store.RTC{Id: store.NewRtcId(), RoomId: room1.Id}
	rtc2 := store.RTC{Id: store.NewRtcId(), RoomId: room2.Id}

	fs.finished = []store.FinishedRecording{
		{Room: room1, Rtc: rtc1, Recording: store.Recording{RtcId: rtc1.Id, Status: store.RecordingInProgress}, Backend: backend},
		{Room: room2, Rtc: rtc2, Recording: store.Recording{RtcId: rtc2.Id, Status: store.RecordingInProgress}, Backend: backend},
	}

	deps := newTestDepsWithAuthz(fs, fakeAuthz{allow: true})
	h := NewVacuumHandler(deps)

	req := Request{
		Inbound: inboundRequest("system.vacuum", "", "svc.example.org", newAgentId()),
		Payload: &VacuumPayload{},
	}

	outs, err := h(noopCtx(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 4 {
		t.Fatalf("expected [upload, close] per recording (4 total), got %d", len(outs))
	}
	if len(fs.deletedRooms) != 2 {
		t.Fatalf("expected agent rows deleted for both rooms, got %d deletes", len(fs.deletedRooms))
	}
}

// S6: vacuum unauthorized.
func TestVacuumHandler_Unauthorized(t *testing.T) {
	fs := newFakeStore()
	fs.finished = []store.FinishedRecording{{
		Room:      store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"},
		Rtc:       store.RTC{Id: store.NewRtcId()},
		Recording: store.Recording{Status: store.RecordingInProgress},
		Backend:   store.Backend{AgentId: newAgentId()},
	}}

	deps := newTestDepsWithAuthz(fs, fakeAuthz{allow: false})
	h := NewVacuumHandler(deps)

	req := Request{
		Inbound: inboundRequest("system.vacuum", "", "svc.example.org", newAgentId()),
		Payload: &VacuumPayload{},
	}

	outs, err := h(noopCtx(), req)
	if outs != nil {
		t.Errorf("expected no outbound messages, got %v", outs)
	}
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
	if len(fs.deletedRooms) != 0 {
		t.Errorf("expected no store mutation, got %d deletes", len(fs.deletedRooms))
	}
}

func TestVacuumHandler_NothingFinished_NoOutput(t *testing.T) {
	fs := newFakeStore()
	deps := newTestDepsWithAuthz(fs, fakeAuthz{allow: true})
	h := NewVacuumHandler(deps)

	req := Request{
		Inbound: inboundRequest("system.vacuum", "", "svc.example.org", newAgentId()),
		Payload: &VacuumPayload{},
	}

	outs, err := h(noopCtx(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 0 {
		t.Errorf("expected no outbound messages, got %d", len(outs))
	}
}

func TestRoomsInfoHandler_ReturnsBackendLoad(t *testing.T) {
	fs := newFakeStore()
	fs.onlineBackends = 2
	fs.totalCapacity = 100
	fs.connectedAgents = 5
	bid := store.BackendId(store.NewRoomId())
	fs.backendLoad[bid] = store.BackendLoad{Reserve: 3, Agents: 2}

	deps := newTestDepsWithAuthz(fs, fakeAuthz{allow: true})
	h := NewRoomsInfoHandler(deps)

	req := Request{
		Inbound: inboundRequest("system.rooms.info", "client/responses", "svc.example.org", newAgentId()),
		Payload: &RoomsInfoPayload{},
	}

	outs, err := h(noopCtx(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected one response, got %d", len(outs))
	}
}

func TestRoomsInfoHandler_Unauthorized(t *testing.T) {
	fs := newFakeStore()
	deps := newTestDepsWithAuthz(fs, fakeAuthz{allow: false})
	h := NewRoomsInfoHandler(deps)

	req := Request{
		Inbound: inboundRequest("system.rooms.info", "client/responses", "svc.example.org", newAgentId()),
		Payload: &RoomsInfoPayload{},
	}

	_, err := h(noopCtx(), req)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}
