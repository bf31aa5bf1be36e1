package engine

import (
	"time"

	"visiontrack/internal/behavior"
	"visiontrack/internal/config"
	"visiontrack/internal/model"
	"visiontrack/internal/track"
)

// surveillanceAnalyzer adapts the behavior classifier to the engine's
// per-mode strategy boundary.
type surveillanceAnalyzer struct {
	classifier *behavior.Classifier
}

func NewSurveillanceAnalyzer(cfg config.SurveillanceConfig) Analyzer {
	return &surveillanceAnalyzer{classifier: behavior.NewClassifier(cfg)}
}

func (s *surveillanceAnalyzer) NewPerson(id int64, location model.Point, at time.Time) []behavior.Candidate {
	return []behavior.Candidate{s.classifier.OnNewPerson(id, location, at)}
}

func (s *surveillanceAnalyzer) Analyze(p *track.Person, det *model.Detection, at time.Time) ([]model.RepEvent, []behavior.Candidate) {
	return nil, s.classifier.Analyze(p, det, at)
}

func (s *surveillanceAnalyzer) Retire(id int64) {
	s.classifier.OnRetired(id)
}

func (s *surveillanceAnalyzer) Reset() {
	s.classifier.Reset()
}
