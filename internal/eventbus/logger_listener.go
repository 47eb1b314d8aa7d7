package eventbus

import (
	"context"

	"github.com/mxocore/worldcore/internal/logging"
)

// StartLoggingListener subscribes to every event on bus and logs each one.
// Non-blocking.
func StartLoggingListener(bus EventBus) error {
	logger := logging.GetComponentLogger("eventbus")
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		logger.Debug("%s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return err
	}
	logger.Info("logging listener subscribed to all events")
	return nil
}
