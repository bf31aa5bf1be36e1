package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes every emitted event to the structured log. It stands in
// for the audio/console collaborators of the original deployment.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(_ context.Context, ev Event) error {
	if l.logger == nil {
		return nil
	}
	switch ev.Kind {
	case KindRep:
		if ev.Rep != nil {
			l.logger.Info("rep completed",
				"person_id", ev.Rep.PersonID,
				"exercise", ev.Rep.Exercise,
				"rep_number", ev.Rep.RepNumber,
				"angle", ev.Rep.Angle,
				"depth_quality", ev.Rep.DepthQuality,
			)
		}
	case KindAlert:
		if ev.Alert != nil {
			l.logger.Warn("alert emitted",
				"alert_type", ev.Alert.Type,
				"person_id", ev.Alert.PersonID,
				"confidence", ev.Alert.Confidence,
				"description", ev.Alert.Description,
			)
		}
	}
	return nil
}
