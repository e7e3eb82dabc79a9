package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingNotifier struct {
	sent atomic.Int64
	fail bool
}

func (n *countingNotifier) Notify(ctx context.Context, subject, body string) error {
	n.sent.Add(1)
	if n.fail {
		return &DeliveryError{Recipient: "ops@example.org", Subject: subject, Err: errors.New("relay down")}
	}
	return nil
}

func testEvents(n int) []alert.Event {
	events := make([]alert.Event, n)
	for i := range events {
		events[i] = alert.Event{
			ID:      "ev",
			Kind:    alert.CondDrift,
			BuoyID:  "D4711",
			Current: &models.BuoyRecord{},
			At:      time.Now(),
		}
	}
	return events
}

func TestDispatcher_DeliversAllEvents(t *testing.T) {
	notifier := &countingNotifier{}
	d := NewDispatcher(notifier, 2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	d.Dispatch(testEvents(7))
	d.Stop()

	if notifier.sent.Load() != 7 {
		t.Errorf("expected 7 delivery attempts, got %d", notifier.sent.Load())
	}
}

func TestDispatcher_DeliveryFailureIsNotFatal(t *testing.T) {
	notifier := &countingNotifier{fail: true}
	d := NewDispatcher(notifier, 1, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	d.Dispatch(testEvents(3))
	d.Stop()

	// Every event is attempted even though each attempt fails.
	if notifier.sent.Load() != 3 {
		t.Errorf("expected 3 attempts despite failures, got %d", notifier.sent.Load())
	}
}

func TestDeliveryError_Unwrap(t *testing.T) {
	inner := errors.New("relay down")
	err := &DeliveryError{Recipient: "ops@example.org", Subject: "s", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected DeliveryError to unwrap to the inner error")
	}
}
