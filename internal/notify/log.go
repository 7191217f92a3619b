package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes events to the structured log. Used in development and
// wherever no broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger.Named("notify")}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.logger.Info("notification event",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("coach_id", ev.CoachID),
		zap.String("email", ev.Email),
		zap.Int("corrections", len(ev.Corrections)),
	)
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
