package ingest

import (
	"testing"
	"time"
)

func TestParseFrameObjectLandmarks(t *testing.T) {
	line := `{"timestamp":"2026-02-23T12:34:56Z","camera_id":"cam1","detections":[{"box":{"x":10,"y":20,"width":50,"height":100},"landmarks":[{"x":1,"y":2,"visibility":0.9}],"confidence":0.95}]}`
	frame, err := ParseFrameBytes([]byte(line), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if frame.CameraID != "cam1" {
		t.Fatalf("camera: %s", frame.CameraID)
	}
	want := time.Date(2026, 2, 23, 12, 34, 56, 0, time.UTC)
	if !frame.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %v", frame.Timestamp)
	}
	if len(frame.Detections) != 1 {
		t.Fatalf("detections: %d", len(frame.Detections))
	}
	det := frame.Detections[0]
	if det.Confidence != 0.95 || det.Box.Width != 50 {
		t.Fatalf("detection: %+v", det)
	}
	if det.Landmarks[0].Visibility != 0.9 {
		t.Fatalf("landmark: %+v", det.Landmarks[0])
	}
}

func TestParseFrameArrayLandmarks(t *testing.T) {
	line := `{"timestamp":"2026-02-23T12:34:56Z","detections":[{"landmarks":[[1,2,0.8],[3,4]],"confidence":0.9}]}`
	frame, err := ParseFrameBytes([]byte(line), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	lms := frame.Detections[0].Landmarks
	if lms[0].X != 1 || lms[0].Y != 2 || lms[0].Visibility != 0.8 {
		t.Fatalf("landmark 0: %+v", lms[0])
	}
	// A bare [x, y] pair defaults to fully visible.
	if lms[1].Visibility != 1 {
		t.Fatalf("landmark 1 visibility: %v", lms[1].Visibility)
	}
}

func TestParseFrameDefaultCamera(t *testing.T) {
	frame, err := ParseFrameBytes([]byte(`{"detections":[]}`), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if frame.CameraID != "cam0" {
		t.Fatalf("camera: %s", frame.CameraID)
	}
	if !frame.Timestamp.IsZero() {
		t.Fatalf("expected zero timestamp, got %v", frame.Timestamp)
	}
}

func TestParseFrameEpochMillis(t *testing.T) {
	frame, err := ParseFrameBytes([]byte(`{"timestamp":1760000000000,"detections":[]}`), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !frame.Timestamp.Equal(time.UnixMilli(1760000000000)) {
		t.Fatalf("timestamp: %v", frame.Timestamp)
	}
}

func TestParseFrameEpochSeconds(t *testing.T) {
	frame, err := ParseFrameBytes([]byte(`{"timestamp":1760000000.5,"detections":[]}`), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := time.Unix(1760000000, int64(500*time.Millisecond))
	if frame.Timestamp.Sub(want).Abs() > time.Millisecond {
		t.Fatalf("timestamp: %v", frame.Timestamp)
	}
}

func TestParseFrameBatchArray(t *testing.T) {
	payload := `[{"timestamp":"2026-02-23T12:00:00Z","detections":[]},{"timestamp":"2026-02-23T12:00:01Z","detections":[]}]`
	frames, err := ParseFrameBatch([]byte(payload), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames: %d", len(frames))
	}
	if !frames[1].Timestamp.After(frames[0].Timestamp) {
		t.Fatalf("batch order lost")
	}
}

func TestParseFrameBatchSingleObject(t *testing.T) {
	frames, err := ParseFrameBatch([]byte(`{"detections":[]}`), "cam0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames: %d", len(frames))
	}
}

func TestParseFrameBadTimestamp(t *testing.T) {
	if _, err := ParseFrameBytes([]byte(`{"timestamp":"yesterday","detections":[]}`), "cam0"); err == nil {
		t.Fatalf("expected error for junk timestamp")
	}
}

func TestParseFrameBadJSON(t *testing.T) {
	if _, err := ParseFrameBytes([]byte(`{detections}`), "cam0"); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}
