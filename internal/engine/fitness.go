package engine

import (
	"log/slog"
	"time"

	"visiontrack/internal/behavior"
	"visiontrack/internal/config"
	"visiontrack/internal/exercise"
	"visiontrack/internal/model"
	"visiontrack/internal/track"
)

// Analyzer is the per-mode strategy the engine drives. Fitness produces rep
// events, surveillance produces alert candidates; either side of the return
// may always be empty.
type Analyzer interface {
	NewPerson(id int64, location model.Point, at time.Time) []behavior.Candidate
	Analyze(p *track.Person, det *model.Detection, at time.Time) ([]model.RepEvent, []behavior.Candidate)
	Retire(id int64)
	Reset()
}

// fitnessAnalyzer keeps one state machine per tracked person, created lazily
// on the person's first usable angle observation.
type fitnessAnalyzer struct {
	cfg      config.FitnessConfig
	logger   *slog.Logger
	machines map[int64]*exercise.Machine
}

func NewFitnessAnalyzer(cfg config.FitnessConfig, logger *slog.Logger) (Analyzer, error) {
	// Probe the profile once so a bad exercise type fails at startup, not on
	// the first frame.
	if _, err := exercise.NewMachine(0, cfg.Exercise, cfg); err != nil {
		return nil, err
	}
	return &fitnessAnalyzer{
		cfg:      cfg,
		logger:   logger,
		machines: make(map[int64]*exercise.Machine),
	}, nil
}

func (f *fitnessAnalyzer) NewPerson(int64, model.Point, time.Time) []behavior.Candidate {
	return nil
}

func (f *fitnessAnalyzer) Analyze(p *track.Person, det *model.Detection, at time.Time) ([]model.RepEvent, []behavior.Candidate) {
	angle, ok := exercise.TrackedAngle(f.cfg.Exercise, det, f.cfg.MinVisibility)
	if !ok {
		// Occluded joints this frame: the machine keeps its committed state.
		return nil, nil
	}
	m := f.machines[p.ID]
	if m == nil {
		var err error
		m, err = exercise.NewMachine(p.ID, f.cfg.Exercise, f.cfg)
		if err != nil {
			return nil, nil
		}
		f.machines[p.ID] = m
		if f.logger != nil {
			f.logger.Debug("exercise machine created", "person_id", p.ID, "exercise", f.cfg.Exercise)
		}
	}
	if ev, done := m.Update(angle, at); done {
		return []model.RepEvent{ev}, nil
	}
	return nil, nil
}

func (f *fitnessAnalyzer) Retire(id int64) {
	delete(f.machines, id)
}

func (f *fitnessAnalyzer) Reset() {
	f.machines = make(map[int64]*exercise.Machine)
}
