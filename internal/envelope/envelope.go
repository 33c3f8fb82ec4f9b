// Package envelope implements the outbound message builder (C8): every
// request, response, and event the core emits is built here so timing,
// tracking, and routing properties stay consistent across handlers,
// grounded on the original CorrelationDataPayload/ShortTermTimingProperties
// shape in endpoint/message.rs.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/netology-group/conferences/internal/store"
)

// Kind is the wire-level envelope discriminator. The bus carries four
// kinds; the core only ever constructs the first three.
type Kind string

const (
	KindRequest      Kind = "request"
	KindResponse     Kind = "response"
	KindEvent        Kind = "event"
	KindNotification Kind = "notification"
)

// Tracking threads a session's tracking label across hops, propagated
// unchanged by the dispatcher whenever it forwards a request.
type Tracking struct {
	SessionTrackingLabel string `json:"session_tracking_label,omitempty"`
}

// ShortTermTiming is the per-hop timing stamped at build time.
type ShortTermTiming struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// UntilNow stamps a ShortTermTiming measuring from start to the moment of
// the call, mirroring the original's ShortTermTimingProperties::until_now.
func UntilNow(start time.Time) ShortTermTiming {
	now := time.Now()
	return ShortTermTiming{Timestamp: now, Duration: now.Sub(start)}
}

// LongTermTiming accumulates cumulative per-hop durations across a
// request/response round trip; only responses carry one, copied from the
// backend's response and extended with this hop's short-term timing.
type LongTermTiming struct {
	InitialTimestamp    time.Time                `json:"initial_timestamp"`
	CumulativeDurations map[string]time.Duration `json:"cumulative_durations,omitempty"`
}

// Extend returns a copy of t with hop's short-term duration folded into the
// cumulative total for label.
func (t LongTermTiming) Extend(label string, hop ShortTermTiming) LongTermTiming {
	out := LongTermTiming{InitialTimestamp: t.InitialTimestamp}
	out.CumulativeDurations = make(map[string]time.Duration, len(t.CumulativeDurations)+1)
	for k, v := range t.CumulativeDurations {
		out.CumulativeDurations[k] = v
	}
	out.CumulativeDurations[label] += hop.Duration
	return out
}

// Timing is the routing property carried by every envelope kind.
type Timing struct {
	LongTerm  *LongTermTiming `json:"long_term,omitempty"`
	ShortTerm ShortTermTiming `json:"short_term"`
}

// Properties are the routing properties common to every envelope kind
// (spec.md §6: "{method|label, correlation_data, response_topic, agent_id,
// tracking, timing}").
type Properties struct {
	Method          string        `json:"method,omitempty"`
	Label           string        `json:"label,omitempty"`
	CorrelationData string        `json:"correlation_data,omitempty"`
	ResponseTopic   string        `json:"response_topic,omitempty"`
	AgentId         store.AgentId `json:"agent_id"`
	Audience        string        `json:"audience,omitempty"`
	Tracking        Tracking      `json:"tracking"`
	Timing          Timing        `json:"timing"`
}

// Inbound is a parsed incoming envelope, not itself Publishable: it is
// what a request/response/event arrives as, before the dispatcher builds
// whatever outbound sequence answering it requires.
type Inbound struct {
	Kind       Kind
	Properties Properties
	Payload    json.RawMessage
	Topic      string
	Status     int
}

// ParseInbound decodes raw bus bytes received on topic into an Inbound
// envelope. Failure here is MessageParsingFailed territory (spec.md §4.4):
// not replyable, since without Properties there is no response topic to
// reply to.
func ParseInbound(topic string, raw []byte) (Inbound, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Inbound{}, err
	}
	return Inbound{
		Kind:       wire.Kind,
		Properties: wire.Properties,
		Payload:    wire.Payload,
		Topic:      topic,
		Status:     wire.Status,
	}, nil
}

// Publishable is the closed set of things the dispatcher can accumulate
// into an outbound sequence and hand to the bus. A private marker method
// closes the set to Request/Response/Event — never `any`.
type Publishable interface {
	publishable()
	// DestinationTopic is the bus topic to publish to.
	DestinationTopic() string
	// MarshalPayload returns the envelope as it goes over the wire.
	MarshalPayload() ([]byte, error)
}

// wireEnvelope is the JSON shape every Publishable marshals to.
type wireEnvelope struct {
	Kind       Kind            `json:"kind"`
	Properties Properties      `json:"properties"`
	Status     int             `json:"status,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Request is an outbound request envelope, e.g. a backend-bound
// stream.upload or the unicast forward of a client message.
type Request struct {
	Properties Properties
	Payload    json.RawMessage
	Topic      string
}

func (Request) publishable()                {}
func (r Request) DestinationTopic() string { return r.Topic }
func (r Request) MarshalPayload() ([]byte, error) {
	return json.Marshal(wireEnvelope{Kind: KindRequest, Properties: r.Properties, Payload: r.Payload})
}

// Response is an outbound response envelope, answering an Inbound request.
type Response struct {
	Properties Properties
	Payload    json.RawMessage
	Status     int
	Topic      string
}

func (Response) publishable()                 {}
func (r Response) DestinationTopic() string { return r.Topic }
func (r Response) MarshalPayload() ([]byte, error) {
	return json.Marshal(wireEnvelope{Kind: KindResponse, Properties: r.Properties, Status: r.Status, Payload: r.Payload})
}

// Event is an outbound, fire-and-forget event, e.g. message.broadcast or
// room.close.
type Event struct {
	Properties Properties
	Payload    json.RawMessage
	Topic      string
}

func (Event) publishable()               {}
func (e Event) DestinationTopic() string { return e.Topic }
func (e Event) MarshalPayload() ([]byte, error) {
	return json.Marshal(wireEnvelope{Kind: KindEvent, Properties: e.Properties, Payload: e.Payload})
}

// Builder constructs Publishable envelopes stamped with this service's
// identity and a consistent timing/tracking shape.
type Builder struct {
	agentID    store.AgentId
	apiVersion string
}

// NewBuilder returns a Builder that stamps every envelope's AgentId with
// agentID (this service's own bus identity).
func NewBuilder(agentID store.AgentId, apiVersion string) *Builder {
	return &Builder{agentID: agentID, apiVersion: apiVersion}
}

// Request builds an outbound request to topic, carrying payload, tagged
// with method and correlationData, timed from start. responseTopic is
// where the eventual response to this request must be published.
func (b *Builder) Request(method, topic, responseTopic, correlationData string, payload any, tracking Tracking, start time.Time) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Topic:   topic,
		Payload: body,
		Properties: Properties{
			Method:          method,
			CorrelationData: correlationData,
			ResponseTopic:   responseTopic,
			AgentId:         b.agentID,
			Tracking:        tracking,
			Timing:          Timing{ShortTerm: UntilNow(start)},
		},
	}, nil
}

// Response builds a response to in, copying its CorrelationData, tracking,
// and long-term timing, extending the long-term total with this hop's
// short-term timing. longTerm is the long-term timing carried by the
// upstream response being rewrapped, if any (nil for a direct reply).
func (b *Builder) Response(in Inbound, status int, payload any, longTerm *LongTermTiming, start time.Time) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}
	shortTerm := UntilNow(start)
	timing := Timing{ShortTerm: shortTerm}
	if longTerm != nil {
		extended := longTerm.Extend(in.Properties.Method, shortTerm)
		timing.LongTerm = &extended
	}
	return Response{
		Topic:   in.Properties.ResponseTopic,
		Status:  status,
		Payload: body,
		Properties: Properties{
			CorrelationData: in.Properties.CorrelationData,
			AgentId:         b.agentID,
			Tracking:        in.Properties.Tracking,
			Timing:          timing,
		},
	}, nil
}

// Event builds a fire-and-forget event on topic, labeled label, with no
// long-term timing — matching §4.8's "broadcast events use freshly-built
// properties with no long-term timing".
func (b *Builder) Event(topic, label string, payload any, tracking Tracking, start time.Time) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Topic:   topic,
		Payload: body,
		Properties: Properties{
			Label:    label,
			AgentId:  b.agentID,
			Tracking: tracking,
			Timing:   Timing{ShortTerm: UntilNow(start)},
		},
	}, nil
}

// BackendUnicastTopic builds the outgoing-request topic for the backend
// bound by backendAgentID, per spec.md §6's
// "agents/{backend_agent_id}/api/{api_version}/in/conference.{audience}".
func (b *Builder) BackendUnicastTopic(backendAgentID store.AgentId, audience string) string {
	return "agents/" + backendAgentID.String() + "/api/" + b.apiVersion + "/in/conference." + audience
}

// RoomEventsTopic builds the room-scoped event topic.
func RoomEventsTopic(room store.RoomId) string {
	return "rooms/" + room.String() + "/events"
}

// InboundTopic builds this service's own subscription topic: client
// requests and backend responses both arrive here, disambiguated by
// envelope kind (spec.md §6's "agents/{this_agent_id}/api/{api_version}/in/…").
func (b *Builder) InboundTopic() string {
	return "agents/" + b.agentID.String() + "/api/" + b.apiVersion + "/in"
}

// AudienceEventsTopic builds the audience-scoped event topic.
func AudienceEventsTopic(audience string) string {
	return "audiences/" + audience + "/events"
}

// RoomUploadEntry is one RTC's entry in a room.upload event payload, per
// spec.md §4.6's "Room closure event shape".
type RoomUploadEntry struct {
	Id        store.RtcId           `json:"id"`
	Status    store.RecordingStatus `json:"status"`
	Uri       string                `json:"uri,omitempty"`
	Segments  [][2]int64            `json:"segments,omitempty"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
}

// BuildRoomUploadEvent assembles the room.upload event for a room's
// audience from its RTCs' finished recordings, emitted on
// AudienceEventsTopic once every recording for the room is ready or
// missing. Not called from the vacuum pass (§9's open question: the
// source emits only room.close during vacuum; room.upload is built
// elsewhere, once recordings actually finish uploading).
//
// A recording still in_progress at build time is a programming error —
// construction fails rather than emit a misleading entry (§8 property 4).
func (b *Builder) BuildRoomUploadEvent(audience string, recordings []store.Recording, start time.Time) (Event, error) {
	entries := make([]RoomUploadEntry, 0, len(recordings))
	for _, rec := range recordings {
		if rec.Status == store.RecordingInProgress {
			return Event{}, fmt.Errorf("envelope: cannot build room.upload event: rtc %s recording still in_progress", rec.RtcId)
		}

		entry := RoomUploadEntry{Id: rec.RtcId, Status: rec.Status, StartedAt: rec.StartedAt}
		if rec.Status == store.RecordingReady {
			entry.Uri = fmt.Sprintf("s3://origin.webinar.%s/%s.source.webm", audience, rec.RtcId.String())
			entry.Segments = make([][2]int64, len(rec.Segments))
			for i, seg := range rec.Segments {
				entry.Segments[i] = [2]int64{seg.StartMs, seg.EndMs}
			}
		}
		entries = append(entries, entry)
	}

	return b.Event(AudienceEventsTopic(audience), "room.upload", entries, Tracking{}, start)
}
