package engine

import (
	"testing"
	"time"

	"visiontrack/internal/model"
)

func TestCooldownSuppressesRepeat(t *testing.T) {
	d := NewDeduplicator(3*time.Second, nil)
	base := time.Now()
	if !d.Submit(1, model.AlertLoitering, base) {
		t.Fatalf("first submit suppressed")
	}
	if d.Submit(1, model.AlertLoitering, base.Add(2*time.Second)) {
		t.Fatalf("submit inside cooldown emitted")
	}
	if !d.Submit(1, model.AlertLoitering, base.Add(7*time.Second)) {
		t.Fatalf("submit after cooldown suppressed")
	}
}

func TestCooldownKeysArePerPersonPerType(t *testing.T) {
	d := NewDeduplicator(3*time.Second, nil)
	base := time.Now()
	if !d.Submit(1, model.AlertLoitering, base) {
		t.Fatalf("first submit suppressed")
	}
	// Different person, same type.
	if !d.Submit(2, model.AlertLoitering, base) {
		t.Fatalf("other person suppressed")
	}
	// Same person, different type.
	if !d.Submit(1, model.AlertFall, base) {
		t.Fatalf("other type suppressed")
	}
}

func TestCooldownPerTypeOverride(t *testing.T) {
	d := NewDeduplicator(3*time.Second, map[string]time.Duration{
		string(model.AlertFall): 5 * time.Second,
	})
	base := time.Now()
	d.Submit(1, model.AlertFall, base)
	if d.Submit(1, model.AlertFall, base.Add(4*time.Second)) {
		t.Fatalf("fall emitted inside its longer cooldown")
	}
	if !d.Submit(1, model.AlertFall, base.Add(6*time.Second)) {
		t.Fatalf("fall suppressed after its cooldown")
	}
}

func TestZeroCooldownNeverSuppresses(t *testing.T) {
	d := NewDeduplicator(0, nil)
	base := time.Now()
	for i := 0; i < 3; i++ {
		if !d.Submit(1, model.AlertRapidMovement, base) {
			t.Fatalf("zero cooldown suppressed")
		}
	}
}

func TestSetCooldownsKeepsHistory(t *testing.T) {
	d := NewDeduplicator(3*time.Second, nil)
	base := time.Now()
	d.Submit(1, model.AlertLoitering, base)
	d.SetCooldowns(10*time.Second, nil)
	if d.Submit(1, model.AlertLoitering, base.Add(5*time.Second)) {
		t.Fatalf("reload dropped emission history")
	}
}

func TestCooldownReset(t *testing.T) {
	d := NewDeduplicator(time.Hour, nil)
	base := time.Now()
	d.Submit(1, model.AlertLoitering, base)
	d.Reset()
	if !d.Submit(1, model.AlertLoitering, base.Add(time.Second)) {
		t.Fatalf("reset did not clear history")
	}
}
