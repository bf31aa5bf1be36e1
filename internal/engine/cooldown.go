package engine

import (
	"strconv"
	"sync"
	"time"

	"visiontrack/internal/model"
)

// Deduplicator is the cooldown gate in front of alert delivery. It tracks the
// last emission per (person, alert type) and silently suppresses candidates
// arriving inside the type's cooldown window. Suppression is a normal
// outcome, never an error.
type Deduplicator struct {
	mu       sync.Mutex
	last     map[string]time.Time
	fallback time.Duration
	perType  map[string]time.Duration
}

func NewDeduplicator(defaultCooldown time.Duration, perType map[string]time.Duration) *Deduplicator {
	return &Deduplicator{
		last:     make(map[string]time.Time),
		fallback: defaultCooldown,
		perType:  perType,
	}
}

// Submit reports whether the candidate may be emitted at time now, recording
// the emission timestamp when it may. Timestamps only move forward.
func (d *Deduplicator) Submit(personID int64, alertType model.AlertType, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cooldown := d.cooldownFor(alertType)
	if cooldown <= 0 {
		return true
	}
	key := strconv.FormatInt(personID, 10) + "|" + string(alertType)
	if ts, ok := d.last[key]; ok {
		if now.Sub(ts) < cooldown {
			return false
		}
	}
	if ts, ok := d.last[key]; !ok || now.After(ts) {
		d.last[key] = now
	}
	return true
}

func (d *Deduplicator) cooldownFor(alertType model.AlertType) time.Duration {
	if d.perType != nil {
		if c, ok := d.perType[string(alertType)]; ok {
			return c
		}
	}
	return d.fallback
}

// SetCooldowns swaps the cooldown durations without touching the emission
// history, so a config reload cannot re-fire a recently emitted alert.
func (d *Deduplicator) SetCooldowns(fallback time.Duration, perType map[string]time.Duration) {
	d.mu.Lock()
	d.fallback = fallback
	d.perType = perType
	d.mu.Unlock()
}

// Reset forgets all emission timestamps.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.last = make(map[string]time.Time)
	d.mu.Unlock()
}
