package notify

import (
	"context"
	"log/slog"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/worker"
)

// LogNotifier writes notifications to the log instead of sending them.
// Used for dry runs and as the fallback when no relay is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, subject, body string) error {
	slog.Info("notification (log only)", "subject", subject)
	return nil
}

// Dispatcher consumes alert events and delivers them through a worker pool.
// Fire-and-forget: an alert counts as sent once attempted, and a delivery
// failure is logged, not retried.
type Dispatcher struct {
	pool *worker.Pool
}

func NewDispatcher(notifier Notifier, workers, bufferSize int) *Dispatcher {
	handler := func(ctx context.Context, task worker.Task) error {
		event := task.(alert.Event)
		if err := notifier.Notify(ctx, event.Subject(), event.Body()); err != nil {
			slog.Error("notification delivery failed", "event", event.ID, "buoy", event.BuoyID, "error", err)
			return err
		}
		slog.Info("sent alert", "event", event.ID, "kind", event.Kind, "buoy", event.BuoyID)
		return nil
	}

	return &Dispatcher{pool: worker.NewPool(workers, bufferSize, handler)}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Dispatch queues events for delivery.
func (d *Dispatcher) Dispatch(events []alert.Event) {
	for _, event := range events {
		if !d.pool.Submit(event) {
			slog.Warn("dropping alert event, dispatcher stopping", "event", event.ID, "buoy", event.BuoyID)
		}
	}
}

// Stop drains queued events and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.pool.Stop()
}
