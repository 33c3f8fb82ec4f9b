// Package alert implements the alert sink (E4): a narrow fan-out for
// AppErrors whose kind is flagged Alert() == true. Failures here never
// influence user-visible behavior (spec.md §7).
package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/logging"
)

// Sink forwards an alertable error. Implementations must not return an
// error the caller is expected to act on — alert delivery is best-effort.
type Sink interface {
	Send(ctx context.Context, appErr *errs.AppError, method string)
}

// LoggingSink is the default Sink: it logs at error level with the kind's
// code and title, standing in for a paging/notification integration.
type LoggingSink struct{}

// New returns the logging-backed Sink.
func New() LoggingSink { return LoggingSink{} }

// Send implements Sink.
func (LoggingSink) Send(ctx context.Context, appErr *errs.AppError, method string) {
	if appErr == nil || !appErr.Kind.Alert() {
		return
	}
	logging.Error(ctx, "alert: "+appErr.Kind.Title(),
		zap.String("code", appErr.Kind.Code()),
		zap.String("method", method),
		zap.Error(appErr),
	)
}
