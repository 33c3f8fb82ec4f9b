// Package scheduler drives the periodic vacuum sweep (E5): a gocron job
// that fires system.vacuum on a configured cron schedule, grounded on the
// teacher pack's gocron-based job scheduler (singleton mode, tagged jobs,
// graceful shutdown).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/logging"
)

const vacuumJobTag = "vacuum"

// Invoker is the subset of *dispatch.Dispatcher the scheduler needs to
// trigger a handler on a timer rather than from a bus-delivered envelope.
type Invoker interface {
	InvokeSystem(ctx context.Context, audience, method string, payload any) error
}

// Scheduler wraps gocron and periodically runs the vacuum pass. The zero
// value is not usable; construct one with New.
type Scheduler struct {
	cron     gocron.Scheduler
	invoker  Invoker
	audience string
}

// New configures a Scheduler to run system.vacuum on cronExpr (standard
// five-field cron syntax, no seconds field), scoped to audience. It does
// not start ticking until Start is called.
func New(cronExpr, audience string, invoker Invoker) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: failed to create gocron scheduler: %w", err)
	}

	s := &Scheduler{cron: cron, invoker: invoker, audience: audience}

	_, err = cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.runVacuum),
		gocron.WithTags(vacuumJobTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: failed to register vacuum job (schedule %q): %w", cronExpr, err)
	}

	return s, nil
}

// Start begins ticking. Safe to call once after New.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for any in-flight vacuum pass to finish, then shuts the
// scheduler down.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler: shutdown error: %w", err)
	}
	return nil
}

// runVacuum is the gocron task body. Singleton mode guarantees only one
// runs at a time; a still-running previous pass causes this tick to
// reschedule rather than overlap.
func (s *Scheduler) runVacuum() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.invoker.InvokeSystem(ctx, s.audience, "system.vacuum", vacuumPayload{}); err != nil {
		logging.Error(ctx, "vacuum sweep failed", zap.Error(err))
		return
	}
	logging.Info(ctx, "vacuum sweep completed")
}

// vacuumPayload satisfies handler.VacuumPayload's shape without importing
// internal/handler, avoiding a dependency the scheduler otherwise has no
// need for (it calls through the Invoker interface, not handler.Func
// directly).
type vacuumPayload struct{}
