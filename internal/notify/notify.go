// Package notify decouples event delivery from the frame loop. Emitted
// events are handed to a buffered dispatcher; slow collaborators (storage,
// sockets) run on the dispatcher goroutine and can never stall processing.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"visiontrack/internal/model"
)

type EventKind string

const (
	KindRep   EventKind = "rep"
	KindAlert EventKind = "alert"
)

// Event is the envelope fanned out to notifiers. Exactly one of Rep or Alert
// is set, matching Kind.
type Event struct {
	Kind  EventKind       `json:"kind"`
	Rep   *model.RepEvent `json:"rep,omitempty"`
	Alert *model.Alert    `json:"alert,omitempty"`
}

// Notifier is the boundary to an external collaborator. A failing notifier
// is logged and skipped; it never invalidates the already-counted event.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

type Dispatcher struct {
	logger    *slog.Logger
	notifiers []Notifier
	ch        chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(buffer int, logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		logger:    logger,
		notifiers: notifiers,
		ch:        make(chan Event, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.ch {
		for _, n := range d.notifiers {
			if err := n.Notify(context.Background(), ev); err != nil && d.logger != nil {
				d.logger.Warn("notifier delivery failed", "notifier", n.Name(), "kind", ev.Kind, "err", err)
			}
		}
	}
}

// Publish hands an event to the dispatcher without blocking. A full buffer
// drops the delivery (the event itself stays counted upstream).
func (d *Dispatcher) Publish(ev Event) bool {
	select {
	case d.ch <- ev:
		return true
	default:
		if d.logger != nil {
			d.logger.Warn("notify buffer full, dropping delivery", "kind", ev.Kind)
		}
		return false
	}
}

// Close flushes buffered events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.ch)
	})
	d.wg.Wait()
}
