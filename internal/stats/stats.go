// Package stats keeps the rolling counters the API serves. The frame loop is
// the only writer; readers get copies built under a short lock.
package stats

import (
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"

	"visiontrack/internal/model"
)

// fpsRingSize bounds the timestamps retained for the 1-second fps window.
// 256 covers anything up to 256 fps.
const fpsRingSize = 256

const fpsWindow = time.Second

type Aggregator struct {
	mu           sync.RWMutex
	frameTimes   ringbuffer.RingP[time.Time]
	activeCount  int
	totalReps    int64
	totalAlerts  int64
	alertsByType map[string]int64
	running      bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		frameTimes:   ringbuffer.NewRingP[time.Time](fpsRingSize),
		alertsByType: make(map[string]int64),
	}
}

// FrameProcessed records one frame arrival and the current live-track count.
func (a *Aggregator) FrameProcessed(at time.Time, activePersons int) {
	a.mu.Lock()
	a.frameTimes.Add(at)
	a.activeCount = activePersons
	a.mu.Unlock()
}

func (a *Aggregator) RepCounted() {
	a.mu.Lock()
	a.totalReps++
	a.mu.Unlock()
}

func (a *Aggregator) AlertCounted(alertType model.AlertType) {
	a.mu.Lock()
	a.totalAlerts++
	a.alertsByType[string(alertType)]++
	a.mu.Unlock()
}

func (a *Aggregator) SetRunning(running bool) {
	a.mu.Lock()
	a.running = running
	a.mu.Unlock()
}

// Snapshot builds a complete copy. fps counts frames within the last rolling
// second, so it reacts within one window length to a rate change.
func (a *Aggregator) Snapshot(now time.Time) model.StatsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cutoff := now.Add(-fpsWindow)
	frames := 0
	for i := a.frameTimes.Len() - 1; i >= 0; i-- {
		if a.frameTimes.Peek(i).Before(cutoff) {
			break
		}
		frames++
	}
	byType := make(map[string]int64, len(a.alertsByType))
	for k, v := range a.alertsByType {
		byType[k] = v
	}
	return model.StatsSnapshot{
		FPS:           float64(frames) / fpsWindow.Seconds(),
		ActivePersons: a.activeCount,
		TotalReps:     a.totalReps,
		TotalAlerts:   a.totalAlerts,
		AlertsByType:  byType,
		Running:       a.running,
		UpdatedAt:     now,
	}
}

// Reset zeroes every counter. The running flag is left alone; it tracks the
// engine lifecycle, not session contents.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameTimes = ringbuffer.NewRingP[time.Time](fpsRingSize)
	a.activeCount = 0
	a.totalReps = 0
	a.totalAlerts = 0
	a.alertsByType = make(map[string]int64)
}
