package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/netology-group/conferences/internal/store"
)

func noopCtx() context.Context { return context.Background() }

func newAgentId() store.AgentId { return store.AgentId(uuid.New()) }
