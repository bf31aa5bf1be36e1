// Package engine owns the frame pipeline: identity tracking, per-mode
// analysis, the alert cooldown gate, stats, and event emission. Frames are
// processed by a single goroutine; everything readers see comes out as a
// snapshot or a copy.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"visiontrack/internal/alerts"
	"visiontrack/internal/behavior"
	"visiontrack/internal/config"
	"visiontrack/internal/model"
	"visiontrack/internal/notify"
	"visiontrack/internal/stats"
	"visiontrack/internal/storage"
	"visiontrack/internal/track"
)

type Engine struct {
	logger     *slog.Logger
	cfg        *config.Config
	mode       model.Mode
	dispatcher *notify.Dispatcher
	store      storage.Store
	stats      *stats.Aggregator
	alertStore *alerts.Store

	// Guarded state. ProcessFrame and Reset contend on mu; readers take it
	// only long enough to copy.
	mu       sync.Mutex
	tracker  *track.Tracker
	analyzer Analyzer
	dedupe   *Deduplicator
	session  model.Session
}

func New(cfg *config.Config, logger *slog.Logger, dispatcher *notify.Dispatcher, store storage.Store, agg *stats.Aggregator, alertStore *alerts.Store) (*Engine, error) {
	var analyzer Analyzer
	var err error
	switch cfg.Mode {
	case model.ModeFitness:
		analyzer, err = NewFitnessAnalyzer(cfg.Fitness, logger)
		if err != nil {
			return nil, err
		}
	case model.ModeSurveillance:
		analyzer = NewSurveillanceAnalyzer(cfg.Surveillance)
	default:
		return nil, fmt.Errorf("unknown mode: %q", cfg.Mode)
	}

	e := &Engine{
		logger:     logger,
		cfg:        cfg,
		mode:       cfg.Mode,
		dispatcher: dispatcher,
		store:      store,
		stats:      agg,
		alertStore: alertStore,
		tracker:    track.NewTracker(cfg.Tracking.MaxMatchDistance, cfg.Tracking.MaxMissingFrames, cfg.Tracking.PositionHistory),
		analyzer:   analyzer,
		dedupe:     NewDeduplicator(cfg.Surveillance.DefaultCooldown.Std(), cfg.Surveillance.CooldownMap()),
	}
	e.session = e.newSession(time.Now())
	return e, nil
}

func (e *Engine) newSession(at time.Time) model.Session {
	s := model.Session{
		ID:        uuid.NewString(),
		Mode:      e.mode,
		StartedAt: at,
	}
	if e.mode == model.ModeFitness {
		s.Exercise = e.cfg.Fitness.Exercise
	}
	return s
}

// Run consumes frames until the context is cancelled or the channel closes.
// This is the only goroutine that mutates pipeline state.
func (e *Engine) Run(ctx context.Context, in <-chan model.Frame) {
	e.stats.SetRunning(true)
	defer e.stats.SetRunning(false)

	session := e.Session()
	if e.store != nil {
		if err := e.store.SaveSession(ctx, session); err != nil {
			e.logger.Warn("session save failed", "err", err)
		}
	}
	e.logger.Info("engine started", "mode", e.mode, "session_id", session.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			e.ProcessFrame(frame)
		}
	}
}

// ProcessFrame runs one frame through tracking, analysis, the cooldown gate
// and emission. Alerts emit in severity order within the frame; the cooldown
// gate judges each candidate independently.
func (e *Engine) ProcessFrame(frame model.Frame) {
	at := frame.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	minConf := e.cfg.Ingest.MinConfidence
	kept := frame.Detections[:0:0]
	for _, det := range frame.Detections {
		if det.Confidence >= minConf {
			kept = append(kept, det)
		}
	}

	up := e.tracker.Update(kept, at)

	var candidates []behavior.Candidate
	var reps []model.RepEvent

	for _, id := range up.NewIDs {
		e.session.PeopleSeen++
		if p := e.tracker.Person(id); p != nil {
			candidates = append(candidates, e.analyzer.NewPerson(id, p.Centroid(), at)...)
		}
	}
	for _, id := range up.Retired {
		e.analyzer.Retire(id)
	}

	ids := make([]int64, 0, len(up.Matched))
	for id := range up.Matched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for _, id := range ids {
		p := e.tracker.Person(id)
		if p == nil {
			continue
		}
		det := up.Matched[id]
		r, c := e.analyzer.Analyze(p, &det, at)
		reps = append(reps, r...)
		candidates = append(candidates, c...)
	}

	for _, rep := range reps {
		rep.SessionID = e.session.ID
		e.session.TotalReps++
		e.stats.RepCounted()
		e.dispatcher.Publish(notify.Event{Kind: notify.KindRep, Rep: &rep})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Type.Severity() > candidates[b].Type.Severity()
	})
	for _, cand := range candidates {
		if !e.dedupe.Submit(cand.PersonID, cand.Type, cand.Timestamp) {
			continue
		}
		alert := model.Alert{
			ID:          uuid.NewString(),
			Timestamp:   cand.Timestamp,
			Type:        cand.Type,
			PersonID:    cand.PersonID,
			Location:    cand.Location,
			Confidence:  cand.Confidence,
			Description: cand.Description,
			SessionID:   e.session.ID,
		}
		e.session.AlertsRaised++
		e.alertStore.Add(alert)
		e.stats.AlertCounted(alert.Type)
		e.dispatcher.Publish(notify.Event{Kind: notify.KindAlert, Alert: &alert})
	}

	e.stats.FrameProcessed(at, e.tracker.ActiveCount())
}

// Reset returns the pipeline to its initial state: tracks, analyzer state,
// cooldown history, counters and the alert buffer all clear together, and a
// fresh session begins. Identity numbering is not rewound.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	ended := e.session
	now := time.Now()
	ended.EndedAt = &now
	e.tracker.Reset()
	e.analyzer.Reset()
	e.dedupe.Reset()
	e.session = e.newSession(now)
	fresh := e.session
	e.mu.Unlock()

	e.stats.Reset()
	e.alertStore.Clear()

	if e.store != nil {
		if err := e.store.CloseSession(ctx, ended); err != nil {
			e.logger.Warn("session close failed", "err", err)
		}
		if err := e.store.SaveSession(ctx, fresh); err != nil {
			e.logger.Warn("session save failed", "err", err)
		}
	}
	e.logger.Info("engine reset", "session_id", fresh.ID)
}

// Stop flushes pending deliveries and closes out the session.
func (e *Engine) Stop(ctx context.Context) {
	e.dispatcher.Close()

	e.mu.Lock()
	now := time.Now()
	e.session.EndedAt = &now
	ended := e.session
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.CloseSession(ctx, ended); err != nil {
			e.logger.Warn("session close failed", "err", err)
		}
	}
	e.logger.Info("engine stopped", "session_id", ended.ID, "total_reps", ended.TotalReps, "alerts_raised", ended.AlertsRaised)
}

// UpdateConfig applies the dynamically-safe parts of a reloaded config:
// detection confidence and alert cooldowns. Structural settings (mode,
// exercise, tracker geometry) take effect on the next start.
func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.dedupe.SetCooldowns(cfg.Surveillance.DefaultCooldown.Std(), cfg.Surveillance.CooldownMap())
}

// Session returns a copy of the current session record.
func (e *Engine) Session() model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Stats returns a snapshot of the rolling counters.
func (e *Engine) Stats() model.StatsSnapshot {
	return e.stats.Snapshot(time.Now())
}

func (e *Engine) Mode() model.Mode {
	return e.mode
}
