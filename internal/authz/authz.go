// Package authz declares the authorization gate (C3): a pure policy
// interface handlers call before touching the store or publishing an event.
// internal/authz/httpgate provides the production HTTP-backed implementation.
package authz

import (
	"context"

	"github.com/netology-group/conferences/internal/store"
)

// Action is the verb being authorized, mirrored from the original svc.rs
// action set.
type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionRead      Action = "read"
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
)

// Subject identifies who is requesting the action: the agent on the bus and
// the audience their topic belongs to.
type Subject struct {
	AgentId  store.AgentId
	Audience string
}

// ObjectPath is the policy-service object being acted on, e.g.
// ["rooms", roomID, "events"]. Built only through the constructors below so
// handlers never hand-assemble path slices.
type ObjectPath []string

// SystemPath identifies the conferencing service itself, used for
// system.vacuum and other service-level operations that are not scoped to a
// room.
func SystemPath() ObjectPath {
	return ObjectPath{"system"}
}

// RoomEventsPath identifies a room's event stream, the object agents
// subscribe to and the service publishes message.broadcast and room.close
// events to.
func RoomEventsPath(room store.RoomId) ObjectPath {
	return ObjectPath{"rooms", room.String(), "events"}
}

// RoomRtcPath identifies a single RTC's reader configuration within a room.
func RoomRtcPath(room store.RoomId, rtc store.RtcId) ObjectPath {
	return ObjectPath{"rooms", room.String(), "rtcs", rtc.String()}
}

// Gate is the authorization policy check (C3). Authorize returns nil when
// the action is permitted, *errs.AppError{Kind: AccessDenied} when the
// policy service explicitly denies it, and *errs.AppError{Kind:
// AuthorizationFailed} when the policy service could not be reached at all
// — a distinction callers must preserve, since a gate outage must never be
// treated as an implicit allow.
type Gate interface {
	Authorize(ctx context.Context, audience string, subject Subject, path ObjectPath, action Action) error
}
