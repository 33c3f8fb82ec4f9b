package handler

import (
	"context"
	"time"

	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

// ReaderConfigUpdatePayload is rtc.reader_config.update's request body: a
// reader's subscription override for one rtc, carried over from
// original_source/src/db/rtc_reader_config.rs but dropped from the
// distillation — existing conference functionality, not a new feature.
// RoomId is required so presence can be checked the same way message
// handlers do: this is conference-membership functionality, not a
// system-level operation, so it gates on presence rather than authz.Gate.
type ReaderConfigUpdatePayload struct {
	RoomId       store.RoomId             `json:"room_id"`
	RtcId        store.RtcId              `json:"rtc_id"`
	ReaderId     store.AgentId            `json:"reader_id"`
	Availability store.ReaderAvailability `json:"availability"`
}

// NewReaderConfigUpdatePayload returns the zero value a strict-decode
// targets.
func NewReaderConfigUpdatePayload() any { return &ReaderConfigUpdatePayload{} }

// NewReaderConfigUpdateHandler builds the rtc.reader_config.update handler:
// find the room open, assert the sender is present, upsert the override,
// and respond with the full set of overrides now recorded for the rtc.
func NewReaderConfigUpdateHandler(deps *Deps) Func {
	return func(ctx context.Context, req Request) ([]envelope.Publishable, error) {
		payload := req.Payload.(*ReaderConfigUpdatePayload)
		sender := req.Inbound.Properties.AgentId

		switch payload.Availability {
		case store.ReaderEnabled, store.ReaderDisabled:
		default:
			return nil, errs.New(errs.InvalidPayload, nil).WithContext("availability", payload.Availability)
		}

		var configs []store.RtcReaderConfig
		err := deps.runBlocking(ctx, func() error {
			if _, err := deps.Store.FindRoom(ctx, payload.RoomId, store.RoomOpen); err != nil {
				return err
			}
			if err := deps.Store.AssertPresence(ctx, payload.RoomId, sender); err != nil {
				return err
			}
			if err := deps.Store.SetRtcReaderConfig(ctx, payload.RtcId, payload.ReaderId, payload.Availability); err != nil {
				return err
			}
			cs, err := deps.Store.ListRtcReaderConfigs(ctx, payload.RtcId)
			if err != nil {
				return err
			}
			configs = cs
			return nil
		})
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := deps.Builder.Response(req.Inbound, 200, readerConfigListResponse{RtcId: payload.RtcId, Readers: configs}, nil, start)
		if err != nil {
			return nil, errs.New(errs.MessageParsingFailed, err)
		}
		return []envelope.Publishable{resp}, nil
	}
}

type readerConfigListResponse struct {
	RtcId   store.RtcId             `json:"rtc_id"`
	Readers []store.RtcReaderConfig `json:"readers"`
}
