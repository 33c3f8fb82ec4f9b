package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// SetRtcReaderConfig implements store.Store, grounded on the original's
// rtc_reader_config upsert-on-conflict semantics.
func (s *Store) SetRtcReaderConfig(ctx context.Context, rtc store.RtcId, reader store.AgentId, availability store.ReaderAvailability) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO rtc_reader_config (rtc_id, reader_id, availability)
		VALUES ($1, $2, $3)
		ON CONFLICT (rtc_id, reader_id) DO UPDATE SET availability = $3`,
		rtcUUID(rtc), agentUUID(reader), string(availability))
	if err != nil {
		return errs.FromStore(err)
	}
	return nil
}

// ListRtcReaderConfigs implements store.Store.
func (s *Store) ListRtcReaderConfigs(ctx context.Context, rtc store.RtcId) ([]store.RtcReaderConfig, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.conn(ctx).Query(ctx,
		`SELECT reader_id, availability FROM rtc_reader_config WHERE rtc_id = $1`,
		rtcUUID(rtc))
	if err != nil {
		return nil, errs.FromStore(err)
	}
	defer rows.Close()

	var out []store.RtcReaderConfig
	for rows.Next() {
		var reader uuid.UUID
		var availability string
		if err := rows.Scan(&reader, &availability); err != nil {
			return nil, errs.FromStore(err)
		}
		out = append(out, store.RtcReaderConfig{
			RtcId:        rtc,
			ReaderId:     store.AgentId(reader),
			Availability: store.ReaderAvailability(availability),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.FromStore(err)
	}
	return out, nil
}
