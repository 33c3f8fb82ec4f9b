package handler

import (
	"testing"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

func TestReaderConfigUpdateHandler_HappyPath(t *testing.T) {
	fs := newFakeStore()
	room := store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"}
	fs.putRoom(room)
	sender := newAgentId()
	reader := newAgentId()
	fs.putPresence(room.Id, sender, store.AgentReady)
	rtc := store.NewRtcId()

	deps := newTestDeps(fs)
	h := NewReaderConfigUpdateHandler(deps)

	payload := &ReaderConfigUpdatePayload{RoomId: room.Id, RtcId: rtc, ReaderId: reader, Availability: store.ReaderDisabled}
	req := Request{
		Inbound: inboundRequest("rtc.reader_config.update", "client/responses", room.Audience, sender),
		Payload: payload,
	}

	outs, err := h(noopCtx(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("expected one response, got %d", len(outs))
	}
	configs := fs.readerConfigs[rtc]
	if len(configs) != 1 || configs[0].Availability != store.ReaderDisabled {
		t.Fatalf("expected one disabled override recorded, got %+v", configs)
	}
}

func TestReaderConfigUpdateHandler_SenderAbsent(t *testing.T) {
	fs := newFakeStore()
	room := store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"}
	fs.putRoom(room)

	deps := newTestDeps(fs)
	h := NewReaderConfigUpdateHandler(deps)

	payload := &ReaderConfigUpdatePayload{RoomId: room.Id, RtcId: store.NewRtcId(), ReaderId: newAgentId(), Availability: store.ReaderEnabled}
	req := Request{
		Inbound: inboundRequest("rtc.reader_config.update", "client/responses", room.Audience, newAgentId()),
		Payload: payload,
	}

	_, err := h(noopCtx(), req)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AgentNotEnteredTheRoom {
		t.Fatalf("expected AgentNotEnteredTheRoom, got %v", err)
	}
}

func TestReaderConfigUpdateHandler_InvalidAvailability(t *testing.T) {
	fs := newFakeStore()
	room := store.Room{Id: store.NewRoomId(), Audience: "usr.example.org"}
	fs.putRoom(room)
	sender := newAgentId()
	fs.putPresence(room.Id, sender, store.AgentReady)

	deps := newTestDeps(fs)
	h := NewReaderConfigUpdateHandler(deps)

	payload := &ReaderConfigUpdatePayload{RoomId: room.Id, RtcId: store.NewRtcId(), ReaderId: newAgentId(), Availability: store.ReaderAvailability("bogus")}
	req := Request{
		Inbound: inboundRequest("rtc.reader_config.update", "client/responses", room.Audience, sender),
		Payload: payload,
	}

	_, err := h(noopCtx(), req)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.InvalidPayload {
		t.Fatalf("expected InvalidPayload, got %v", err)
	}
}
