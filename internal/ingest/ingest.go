// Package ingest feeds pose frames from the configured sources into the
// engine channel. Sources never block on a full channel; a frame that cannot
// be queued is dropped and logged.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"visiontrack/internal/model"
)

func SendNonBlocking(ctx context.Context, out chan<- model.Frame, frame model.Frame, logger *slog.Logger) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("frame channel full, dropping frame", "camera_id", frame.CameraID, "timestamp", frame.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
