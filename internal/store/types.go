// Package store declares the data model and the Store interface (C2) the
// core depends on. internal/store/postgres provides the production
// implementation; the core never imports a driver directly.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoomId identifies a Room.
type RoomId uuid.UUID

// AgentId identifies an agent (client or service) on the bus.
type AgentId uuid.UUID

// RtcId identifies one media track of one participant in one room.
type RtcId uuid.UUID

// BackendId identifies an external SFU instance.
type BackendId uuid.UUID

func (id RoomId) String() string    { return uuid.UUID(id).String() }
func (id AgentId) String() string   { return uuid.UUID(id).String() }
func (id RtcId) String() string     { return uuid.UUID(id).String() }
func (id BackendId) String() string { return uuid.UUID(id).String() }

func (id RoomId) MarshalJSON() ([]byte, error)    { return json.Marshal(id.String()) }
func (id AgentId) MarshalJSON() ([]byte, error)   { return json.Marshal(id.String()) }
func (id RtcId) MarshalJSON() ([]byte, error)     { return json.Marshal(id.String()) }
func (id BackendId) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *RoomId) UnmarshalJSON(b []byte) error    { return unmarshalID(b, id) }
func (id *AgentId) UnmarshalJSON(b []byte) error   { return unmarshalID(b, id) }
func (id *RtcId) UnmarshalJSON(b []byte) error     { return unmarshalID(b, id) }
func (id *BackendId) UnmarshalJSON(b []byte) error { return unmarshalID(b, id) }

func unmarshalID(b []byte, out any) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("store: invalid id %q: %w", s, err)
	}
	switch o := out.(type) {
	case *RoomId:
		*o = RoomId(parsed)
	case *AgentId:
		*o = AgentId(parsed)
	case *RtcId:
		*o = RtcId(parsed)
	case *BackendId:
		*o = BackendId(parsed)
	}
	return nil
}

// NewRoomId generates a random RoomId.
func NewRoomId() RoomId { return RoomId(uuid.New()) }

// NewRtcId generates a random RtcId.
func NewRtcId() RtcId { return RtcId(uuid.New()) }

// CorrelationToken is a random UUID string issued by the message handlers;
// internal/correlate uses it only as an opaque map key.
type CorrelationToken string

// RoomRequirement constrains find_room lookups.
type RoomRequirement int

const (
	// RoomAny matches regardless of time window.
	RoomAny RoomRequirement = iota
	// RoomOpen requires opens_at <= now < closes_at.
	RoomOpen
	// RoomNotClosed requires now < closes_at.
	RoomNotClosed
)

// RoomTime is the half-open interval [OpensAt, ClosesAt) a room is live
// during. Either bound may be nil to mean -infinity / +infinity.
type RoomTime struct {
	OpensAt  *time.Time
	ClosesAt *time.Time
}

// IsOpen reports whether the interval contains now.
func (t RoomTime) IsOpen(now time.Time) bool {
	if t.OpensAt != nil && now.Before(*t.OpensAt) {
		return false
	}
	if t.ClosesAt != nil && !now.Before(*t.ClosesAt) {
		return false
	}
	return true
}

// IsFinished reports whether now is at or past ClosesAt.
func (t RoomTime) IsFinished(now time.Time) bool {
	return t.ClosesAt != nil && !now.Before(*t.ClosesAt)
}

// Room is the top-level conferencing session.
type Room struct {
	Id             RoomId
	Audience       string
	Time           RoomTime
	BackendBinding *BackendId
}

// AgentStatus is the presence state of an agent-in-room row.
type AgentStatus string

const (
	AgentInProgress AgentStatus = "in_progress"
	AgentReady      AgentStatus = "ready"
)

// AgentInRoom is the composite-keyed presence row for (AgentId, RoomId).
type AgentInRoom struct {
	AgentId   AgentId
	RoomId    RoomId
	Status    AgentStatus
	CreatedAt time.Time
}

// RTC is one media stream track belonging to one participant in one room.
type RTC struct {
	Id     RtcId
	RoomId RoomId
}

// RecordingStatus is the lifecycle state of a Recording.
type RecordingStatus string

const (
	RecordingInProgress RecordingStatus = "in_progress"
	RecordingReady      RecordingStatus = "ready"
	RecordingMissing    RecordingStatus = "missing"
)

// Segment is a half-open integer-millisecond interval within a recording.
type Segment struct {
	StartMs int64
	EndMs   int64
}

// Recording is one-to-one with an RTC.
type Recording struct {
	RtcId     RtcId
	Status    RecordingStatus
	Segments  []Segment
	StartedAt *time.Time
}

// Backend is an external SFU instance.
type Backend struct {
	Id       BackendId
	AgentId  AgentId
	Session  string
	Handle   string
	Capacity *int
	Reserve  *int
}

// ReaderAvailability toggles whether a reader's subscription to a given RTC
// is currently forwarded by the SFU.
type ReaderAvailability string

const (
	ReaderEnabled  ReaderAvailability = "enabled"
	ReaderDisabled ReaderAvailability = "disabled"
)

// RtcReaderConfig is the per-(rtc, reader) subscription override consumed by
// the SFU; dropped from the original distillation, carried here because it
// is existing conference functionality, not a new feature.
type RtcReaderConfig struct {
	RtcId        RtcId
	ReaderId     AgentId
	Availability ReaderAvailability
}

// FinishedRecording is one row returned by RoomsFinishedWithInProgressRecordings:
// a room past its closes_at with an RTC whose recording is still in_progress.
type FinishedRecording struct {
	Room      Room
	Rtc       RTC
	Recording Recording
	Backend   Backend
}
