package handler

import (
	"context"

	"github.com/netology-group/conferences/internal/authz"
	"github.com/netology-group/conferences/internal/correlate"
	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/store"
)

// BlockingPool bounds concurrent blocking store calls, per §5's
// run_blocking requirement. dispatch.Pool satisfies this; declared here
// (rather than imported from internal/dispatch) so internal/handler never
// depends on internal/dispatch, which already depends on internal/handler.
type BlockingPool interface {
	Run(ctx context.Context, fn func() error) error
}

// Deps bundles everything a handler factory needs to close over. One Deps
// is built once at bootstrap and shared by every handler.
type Deps struct {
	Store       store.Store
	Authz       authz.Gate
	Table       *correlate.Table
	Builder     *envelope.Builder
	Pool        BlockingPool
	ThisAgentID store.AgentId
	APIVersion  string
}

// runBlocking submits fn to the bounded pool, lifting a context
// cancellation into errs-free form the caller already expects (the pool
// itself returns ctx.Err() verbatim, which callers check for directly).
func (d *Deps) runBlocking(ctx context.Context, fn func() error) error {
	return d.Pool.Run(ctx, fn)
}
