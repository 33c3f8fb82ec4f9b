package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/correlate"
	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// MessageUnicastTag identifies the correlation entries message.unicast
// registers, and the continuation that rewraps the backend's eventual
// response.
const MessageUnicastTag = "message.unicast"

// UnicastPayload is message.unicast's request body, grounded on
// UnicastRequest in original_source/src/app/endpoint/message.rs.
type UnicastPayload struct {
	AgentId store.AgentId   `json:"agent_id"`
	RoomId  store.RoomId    `json:"room_id"`
	Data    json.RawMessage `json:"data"`
}

// NewUnicastPayload returns the zero value a strict-decode targets.
func NewUnicastPayload() any { return &UnicastPayload{} }

// NewUnicastHandler builds the message.unicast handler: find the room open,
// assert both sender and receiver are present, forward data to the
// receiver's unicast topic, and register a correlation entry so the
// eventual backend response can be rewrapped as a reply to the sender.
func NewUnicastHandler(deps *Deps) Func {
	return func(ctx context.Context, req Request) ([]envelope.Publishable, error) {
		payload := req.Payload.(*UnicastPayload)
		sender := req.Inbound.Properties.AgentId

		var room store.Room
		err := deps.runBlocking(ctx, func() error {
			r, err := deps.Store.FindRoom(ctx, payload.RoomId, store.RoomOpen)
			if err != nil {
				return err
			}
			if err := deps.Store.AssertPresence(ctx, payload.RoomId, sender); err != nil {
				return err
			}
			if err := deps.Store.AssertPresence(ctx, payload.RoomId, payload.AgentId); err != nil {
				return err
			}
			room = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		responseTopic := deps.Builder.InboundTopic()
		destinationTopic := deps.Builder.BackendUnicastTopic(payload.AgentId, room.Audience)
		correlationData := newCorrelationToken()

		start := time.Now()
		outReq, err := deps.Builder.Request(
			req.Inbound.Properties.Method,
			destinationTopic,
			responseTopic,
			string(correlationData),
			payload.Data,
			req.Inbound.Properties.Tracking,
			start,
		)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}

		// Insert happens-before the outbound publish (§5): the dispatcher
		// publishes outs only after this handler returns them.
		deps.Table.Insert(correlationData, correlate.Entry{Tag: MessageUnicastTag, Request: req.Inbound})

		return []envelope.Publishable{outReq}, nil
	}
}

// BroadcastPayload is message.broadcast's request body.
type BroadcastPayload struct {
	RoomId store.RoomId    `json:"room_id"`
	Data   json.RawMessage `json:"data"`
	Label  string          `json:"label,omitempty"`
}

// NewBroadcastPayload returns the zero value a strict-decode targets.
func NewBroadcastPayload() any { return &BroadcastPayload{} }

// NewBroadcastHandler builds the message.broadcast handler: find the room
// open, assert the sender is present, then respond OK to the sender and
// broadcast data as a message.broadcast event on the room's topic.
func NewBroadcastHandler(deps *Deps) Func {
	return func(ctx context.Context, req Request) ([]envelope.Publishable, error) {
		payload := req.Payload.(*BroadcastPayload)
		sender := req.Inbound.Properties.AgentId

		err := deps.runBlocking(ctx, func() error {
			_, err := deps.Store.FindRoom(ctx, payload.RoomId, store.RoomOpen)
			if err != nil {
				return err
			}
			return deps.Store.AssertPresence(ctx, payload.RoomId, sender)
		})
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := deps.Builder.Response(req.Inbound, 200, json.RawMessage(`{}`), nil, start)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}

		event, err := deps.Builder.Event(
			envelope.RoomEventsTopic(payload.RoomId),
			"message.broadcast",
			payload.Data,
			req.Inbound.Properties.Tracking,
			start,
		)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}

		return []envelope.Publishable{resp, event}, nil
	}
}

// NewMessageUnicastContinuation rewraps a backend's response to a pending
// message.unicast as a unicast response to the original sender, preserving
// status and extending timing with this hop, per §4.6.
func NewMessageUnicastContinuation(deps *Deps) ContinuationFunc {
	return func(ctx context.Context, entry correlate.Entry, resp envelope.Inbound) ([]envelope.Publishable, error) {
		start := time.Now()
		var longTerm *envelope.LongTermTiming
		if resp.Properties.Timing.LongTerm != nil {
			longTerm = resp.Properties.Timing.LongTerm
		}
		out, err := deps.Builder.Response(entry.Request, resp.Status, resp.Payload, longTerm, start)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}
		return []envelope.Publishable{out}, nil
	}
}

func newCorrelationToken() store.CorrelationToken {
	return store.CorrelationToken(uuid.New().String())
}
