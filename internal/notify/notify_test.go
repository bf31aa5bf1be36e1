package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"visiontrack/internal/logging"
	"visiontrack/internal/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("boom")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *captureNotifier) got() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &captureNotifier{}
	d := NewDispatcher(16, logging.NewNop(), sink)

	d.Publish(Event{Kind: KindRep, Rep: &model.RepEvent{RepNumber: 1}})
	d.Publish(Event{Kind: KindRep, Rep: &model.RepEvent{RepNumber: 2}})
	d.Publish(Event{Kind: KindAlert, Alert: &model.Alert{ID: "a-1"}})
	d.Close()

	events := sink.got()
	if len(events) != 3 {
		t.Fatalf("events: %d", len(events))
	}
	if events[0].Rep.RepNumber != 1 || events[1].Rep.RepNumber != 2 {
		t.Fatalf("order lost: %+v", events)
	}
	if events[2].Kind != KindAlert || events[2].Alert.ID != "a-1" {
		t.Fatalf("alert event: %+v", events[2])
	}
}

func TestDispatcherSurvivesFailingNotifier(t *testing.T) {
	bad := &captureNotifier{fail: true}
	good := &captureNotifier{}
	d := NewDispatcher(16, logging.NewNop(), bad, good)

	d.Publish(Event{Kind: KindRep, Rep: &model.RepEvent{RepNumber: 1}})
	d.Close()

	if len(good.got()) != 1 {
		t.Fatalf("healthy notifier starved by failing one")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(4, logging.NewNop())
	d.Close()
	d.Close()
}
