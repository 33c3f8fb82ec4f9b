package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// RoomsFinishedWithInProgressRecordings implements store.Store: rooms whose
// closes_at <= now with at least one recording still in_progress, joined to
// the RTC and the backend it is bound to.
func (s *Store) RoomsFinishedWithInProgressRecordings(ctx context.Context) ([]store.FinishedRecording, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT r.id, r.audience, r.opens_at, r.closes_at,
		       t.id, rec.status, rec.started_at,
		       b.id, b.agent_id, b.session_id, b.handle_id, b.capacity, b.reserve
		FROM rooms r
		JOIN rtcs t ON t.room_id = r.id
		JOIN recordings rec ON rec.rtc_id = t.id
		JOIN backends b ON b.id = r.backend_id
		WHERE r.closes_at <= now() AND rec.status = 'in_progress'`)
	if err != nil {
		return nil, errs.FromStore(err)
	}
	defer rows.Close()

	var out []store.FinishedRecording
	for rows.Next() {
		var (
			roomID, rtcID, backendID, backendAgentID uuid.UUID
			audience, recStatus, session, handle      string
			opensAt, closesAt                         pgTimestamp
			startedAt                                 pgTimestamp
			capacity, reserve                         *int
		)
		if err := rows.Scan(
			&roomID, &audience, &opensAt, &closesAt,
			&rtcID, &recStatus, &startedAt,
			&backendID, &backendAgentID, &session, &handle, &capacity, &reserve,
		); err != nil {
			return nil, errs.FromStore(err)
		}

		out = append(out, store.FinishedRecording{
			Room: store.Room{
				Id:       store.RoomId(roomID),
				Audience: audience,
				Time:     store.RoomTime{OpensAt: opensAt.ptr, ClosesAt: closesAt.ptr},
			},
			Rtc: store.RTC{Id: store.RtcId(rtcID), RoomId: store.RoomId(roomID)},
			Recording: store.Recording{
				RtcId:     store.RtcId(rtcID),
				Status:    store.RecordingStatus(recStatus),
				StartedAt: startedAt.ptr,
			},
			Backend: store.Backend{
				Id:       store.BackendId(backendID),
				AgentId:  store.AgentId(backendAgentID),
				Session:  session,
				Handle:   handle,
				Capacity: capacity,
				Reserve:  reserve,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FromStore(err)
	}
	return out, nil
}

// SetRecordingStatus implements store.Store.
func (s *Store) SetRecordingStatus(ctx context.Context, rtc store.RtcId, status store.RecordingStatus, segments []store.Segment, startedAt *time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	segJSON, err := json.Marshal(segmentsToPairs(segments))
	if err != nil {
		return errs.New(errs.Internal, err)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		UPDATE recordings SET status = $2, segments = $3, started_at = $4
		WHERE rtc_id = $1`,
		rtcUUID(rtc), string(status), segJSON, startedAt)
	if err != nil {
		return errs.FromStore(err)
	}
	return nil
}

func segmentsToPairs(segments []store.Segment) [][2]int64 {
	out := make([][2]int64, 0, len(segments))
	for _, seg := range segments {
		out = append(out, [2]int64{seg.StartMs, seg.EndMs})
	}
	return out
}
