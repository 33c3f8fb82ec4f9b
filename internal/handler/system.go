package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/netology-group/conferences/internal/authz"
	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// janusAPIVersion is the fixed API-version path segment backend upload
// requests publish on — distinct from the service's own APIVersion, mirroring
// the teacher/original's JANUS_API_VERSION constant.
const janusAPIVersion = "janus"

// VacuumPayload carries no fields; system.vacuum is a bare trigger.
type VacuumPayload struct{}

// NewVacuumPayload returns the zero value a strict-decode targets.
func NewVacuumPayload() any { return &VacuumPayload{} }

type uploadStreamPayload struct {
	Method    string      `json:"method"`
	Id        store.RtcId `json:"id"`
	Bucket    string      `json:"bucket"`
	Object    string      `json:"object"`
	SessionId string      `json:"session_id"`
	HandleId  string      `json:"handle_id"`
}

type closedRoomPayload struct {
	RoomId store.RoomId `json:"room_id"`
}

// NewVacuumHandler builds the system.vacuum handler: authorize, then for
// every (room, recording, backend) whose room has finished with an
// in_progress recording, delete the room's agent rows (inside one
// transaction covering the whole pass) and append an upload_stream backend
// request followed by a room.close event, in that order. Recordings stay
// in_progress — the backend's eventual confirmation is what transitions
// them, not this pass.
func NewVacuumHandler(deps *Deps) Func {
	return func(ctx context.Context, req Request) ([]envelope.Publishable, error) {
		audience := req.Inbound.Properties.Audience
		subject := authz.Subject{AgentId: req.Inbound.Properties.AgentId, Audience: audience}
		if err := deps.Authz.Authorize(ctx, audience, subject, authz.SystemPath(), authz.ActionUpdate); err != nil {
			return nil, err
		}

		var rows []store.FinishedRecording
		err := deps.runBlocking(ctx, func() error {
			r, err := deps.Store.RoomsFinishedWithInProgressRecordings(ctx)
			if err != nil {
				return err
			}
			rows = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}

		start := time.Now()
		var outs []envelope.Publishable

		err = deps.runBlocking(ctx, func() error {
			return deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
				for _, row := range rows {
					if err := tx.DeleteAgentsInRoom(ctx, row.Room.Id); err != nil {
						return err
					}

					uploadReq, err := deps.Builder.Request(
						"stream.upload",
						backendUploadTopic(row.Backend.AgentId, row.Room.Audience),
						"",
						"",
						uploadStreamPayload{
							Method:    "stream.upload",
							Id:        row.Rtc.Id,
							Bucket:    bucketName(row.Room.Audience),
							Object:    recordObjectName(row.Rtc.Id),
							SessionId: row.Backend.Session,
							HandleId:  row.Backend.Handle,
						},
						envelope.Tracking{},
						start,
					)
					if err != nil {
						return errs.New(errs.BackendRequestFailed, err)
					}

					closeEvent, err := deps.Builder.Event(
						envelope.RoomEventsTopic(row.Room.Id),
						"room.close",
						closedRoomPayload{RoomId: row.Room.Id},
						envelope.Tracking{},
						start,
					)
					if err != nil {
						return errs.New(errs.MessageParsingFailed, err)
					}

					outs = append(outs, uploadReq, closeEvent)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}

		return outs, nil
	}
}

func backendUploadTopic(backendAgentID store.AgentId, audience string) string {
	return fmt.Sprintf("agents/%s/api/%s/in/conference.%s", backendAgentID.String(), janusAPIVersion, audience)
}

func bucketName(audience string) string {
	return "origin.webinar." + audience
}

func recordObjectName(rtc store.RtcId) string {
	return rtc.String() + ".source.webm"
}

// RoomsInfoPayload carries no fields; system.rooms.info is a read-only
// query over all backends. The caller's audience is used only for the
// authorization check.
type RoomsInfoPayload struct{}

// NewRoomsInfoPayload returns the zero value a strict-decode targets.
func NewRoomsInfoPayload() any { return &RoomsInfoPayload{} }

type backendLoadEntry struct {
	BackendId store.BackendId `json:"backend_id"`
	Reserve   int             `json:"reserve"`
	AgentLoad int             `json:"agent_load"`
}

type roomsInfoResponse struct {
	OnlineBackends   int                `json:"online_backends"`
	TotalCapacity    int                `json:"total_capacity"`
	ConnectedAgents  int                `json:"connected_agents"`
	BackendLoad      []backendLoadEntry `json:"backend_load"`
}

// NewRoomsInfoHandler builds the system.rooms.info handler: the
// non-mutating sibling of the original's backend-listing endpoint,
// authorized against ["system"]:read rather than :update since it never
// writes.
func NewRoomsInfoHandler(deps *Deps) Func {
	return func(ctx context.Context, req Request) ([]envelope.Publishable, error) {
		audience := req.Inbound.Properties.Audience
		subject := authz.Subject{AgentId: req.Inbound.Properties.AgentId, Audience: audience}
		if err := deps.Authz.Authorize(ctx, audience, subject, authz.SystemPath(), authz.ActionRead); err != nil {
			return nil, err
		}

		var (
			online, capacity, connected int
			loads                       map[store.BackendId]store.BackendLoad
		)
		err := deps.runBlocking(ctx, func() error {
			var err error
			if online, err = deps.Store.CountBackends(ctx); err != nil {
				return err
			}
			if capacity, err = deps.Store.SumBackendCapacity(ctx); err != nil {
				return err
			}
			if connected, err = deps.Store.ConnectedAgentsCount(ctx); err != nil {
				return err
			}
			if loads, err = deps.Store.BackendReserveLoad(ctx); err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		entries := make([]backendLoadEntry, 0, len(loads))
		for id, load := range loads {
			entries = append(entries, backendLoadEntry{BackendId: id, Reserve: load.Reserve, AgentLoad: load.Agents})
		}

		start := time.Now()
		resp, err := deps.Builder.Response(req.Inbound, 200, roomsInfoResponse{
			OnlineBackends:  online,
			TotalCapacity:   capacity,
			ConnectedAgents: connected,
			BackendLoad:     entries,
		}, nil, start)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}

		return []envelope.Publishable{resp}, nil
	}
}
