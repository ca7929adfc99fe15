package notify

import (
	"context"

	"fleetguard/core/notify"
	"fleetguard/infra/logger"
)

// LogNotifier records notifications in the service log. Used when no broker
// is configured.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.log.Infof("notification %s for booking %s", ev.Type, ev.BookingID)
	return nil
}
