package postgres

import (
	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/store"
)

func roomUUID(id store.RoomId) uuid.UUID       { return uuid.UUID(id) }
func agentUUID(id store.AgentId) uuid.UUID     { return uuid.UUID(id) }
func rtcUUID(id store.RtcId) uuid.UUID         { return uuid.UUID(id) }
func backendUUID(id store.BackendId) uuid.UUID { return uuid.UUID(id) }
