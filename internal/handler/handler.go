// Package handler implements the room lifecycle / messaging handlers
// (C6): message.unicast, message.broadcast, system.vacuum,
// system.rooms.info, rtc.reader_config.update, and the MessageUnicast
// backend-response continuation.
package handler

import (
	"context"

	"github.com/netology-group/conferences/internal/correlate"
	"github.com/netology-group/conferences/internal/envelope"
)

// Request is what the dispatcher hands a Func: the inbound envelope, its
// topic's audience, and the payload already strict-decoded against the
// route's registered struct — generalized from the teacher's
// assertPayload[T] (session/handlers.go), which re-marshals a decoded map;
// ours decodes directly from the bus's json.RawMessage instead.
type Request struct {
	Inbound  envelope.Inbound
	Audience string
	Payload  any
}

// Func is a request handler: it returns the ordered outbound sequence to
// publish, or an error the dispatcher turns into one error response.
type Func func(ctx context.Context, req Request) ([]envelope.Publishable, error)

// ContinuationFunc rewraps a backend response as a reply to whatever
// correlate.Entry its correlation token resolved to.
type ContinuationFunc func(ctx context.Context, entry correlate.Entry, resp envelope.Inbound) ([]envelope.Publishable, error)
