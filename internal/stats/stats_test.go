package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"visiontrack/internal/model"
)

func TestFPSCountsRollingWindow(t *testing.T) {
	a := NewAggregator()
	now := time.Now()
	a.FrameProcessed(now.Add(-2*time.Second), 1)
	a.FrameProcessed(now.Add(-500*time.Millisecond), 1)
	a.FrameProcessed(now.Add(-100*time.Millisecond), 2)

	snap := a.Snapshot(now)
	assert.InDelta(t, 2.0, snap.FPS, 1e-9)
	assert.Equal(t, 2, snap.ActivePersons)
}

func TestCounters(t *testing.T) {
	a := NewAggregator()
	a.RepCounted()
	a.RepCounted()
	a.AlertCounted(model.AlertFall)
	a.AlertCounted(model.AlertFall)
	a.AlertCounted(model.AlertLoitering)

	snap := a.Snapshot(time.Now())
	assert.Equal(t, int64(2), snap.TotalReps)
	assert.Equal(t, int64(3), snap.TotalAlerts)
	assert.Equal(t, int64(2), snap.AlertsByType[string(model.AlertFall)])
	assert.Equal(t, int64(1), snap.AlertsByType[string(model.AlertLoitering)])
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.AlertCounted(model.AlertFall)
	snap := a.Snapshot(time.Now())
	snap.AlertsByType["injected"] = 99

	again := a.Snapshot(time.Now())
	_, found := again.AlertsByType["injected"]
	assert.False(t, found, "mutating a snapshot must not touch the aggregator")
}

func TestResetKeepsRunningFlag(t *testing.T) {
	a := NewAggregator()
	a.SetRunning(true)
	a.RepCounted()
	a.AlertCounted(model.AlertFall)
	a.FrameProcessed(time.Now(), 3)

	a.Reset()
	snap := a.Snapshot(time.Now())
	assert.True(t, snap.Running)
	assert.Zero(t, snap.TotalReps)
	assert.Zero(t, snap.TotalAlerts)
	assert.Zero(t, snap.ActivePersons)
	assert.Empty(t, snap.AlertsByType)
}

func TestFPSRingOverflow(t *testing.T) {
	a := NewAggregator()
	now := time.Now()
	// Push more frames than the ring holds; only recent ones count anyway.
	for i := fpsRingSize * 2; i > 0; i-- {
		a.FrameProcessed(now.Add(-time.Duration(i)*10*time.Millisecond), 1)
	}
	snap := a.Snapshot(now)
	assert.Greater(t, snap.FPS, 0.0)
	assert.LessOrEqual(t, snap.FPS, float64(fpsRingSize))
}
