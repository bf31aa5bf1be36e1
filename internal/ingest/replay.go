package ingest

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"time"

	"visiontrack/internal/config"
	"visiontrack/internal/model"
)

// StartReplay feeds recorded NDJSON frame files through the pipeline.
// With Realtime set, replay sleeps out the gaps between frame timestamps so
// the engine sees the original cadence; otherwise frames go out as fast as
// the channel accepts them.
func StartReplay(ctx context.Context, cfg *config.Manager, out chan<- model.Frame, logger *slog.Logger) {
	current := cfg.Get().Ingest.Replay
	if !current.Enabled {
		if logger != nil {
			logger.Info("replay ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("replay ingest enabled", "files", current.Files, "realtime", current.Realtime, "loop", current.Loop)
	}
	go func() {
		for {
			for _, path := range current.Files {
				if ctx.Err() != nil {
					return
				}
				replayFile(ctx, path, current.Realtime, cfg, out, logger)
			}
			if !current.Loop || ctx.Err() != nil {
				return
			}
		}
	}()
}

func replayFile(ctx context.Context, path string, realtime bool, cfg *config.Manager, out chan<- model.Frame, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		if logger != nil {
			logger.Warn("replay open failed", "path", path, "err", err)
		}
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 8192), 4*1024*1024)
	var prev time.Time
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := ParseFrameBytes(line, cfg.Get().Ingest.DefaultCamera)
		if err != nil {
			if logger != nil {
				logger.Warn("replay frame parse error", "path", path, "err", err)
			}
			continue
		}
		if realtime && !prev.IsZero() && !frame.Timestamp.IsZero() {
			gap := frame.Timestamp.Sub(prev)
			if gap > 0 {
				if !BackoffSleep(ctx, gap) {
					return
				}
			}
		}
		if !frame.Timestamp.IsZero() {
			prev = frame.Timestamp
		}
		SendNonBlocking(ctx, out, frame, logger)
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("replay read error", "path", path, "err", err)
	}
}
