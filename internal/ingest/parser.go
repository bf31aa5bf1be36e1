package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visiontrack/internal/model"
)

// frameDoc is the wire shape of one frame. Timestamps arrive as RFC 3339
// strings or as unix epoch numbers (seconds or milliseconds); landmarks as
// [x, y, visibility] triples or as objects.
type frameDoc struct {
	Timestamp  json.RawMessage `json:"timestamp"`
	CameraID   string          `json:"camera_id"`
	Detections []detectionDoc  `json:"detections"`
}

type detectionDoc struct {
	Box        model.BBox    `json:"box"`
	Landmarks  []landmarkDoc `json:"landmarks"`
	Confidence float64       `json:"confidence"`
}

type landmarkDoc model.Landmark

func (l *landmarkDoc) UnmarshalJSON(data []byte) error {
	trim := strings.TrimSpace(string(data))
	if strings.HasPrefix(trim, "[") {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) < 2 {
			return errors.New("landmark array needs at least x and y")
		}
		l.X, l.Y = arr[0], arr[1]
		if len(arr) >= 3 {
			l.Visibility = arr[2]
		} else {
			l.Visibility = 1
		}
		return nil
	}
	var obj model.Landmark
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*l = landmarkDoc(obj)
	return nil
}

// ParseFrameBytes decodes one frame document. A missing timestamp leaves the
// zero time; the engine stamps those with its own clock. A missing camera ID
// gets the configured default.
func ParseFrameBytes(data []byte, defaultCamera string) (model.Frame, error) {
	var doc frameDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Frame{}, err
	}
	return frameFromDoc(doc, defaultCamera)
}

// ParseFrameBatch decodes either a single frame object or a JSON array of
// frame objects.
func ParseFrameBatch(data []byte, defaultCamera string) ([]model.Frame, error) {
	trim := strings.TrimSpace(string(data))
	if trim == "" {
		return nil, errors.New("empty payload")
	}
	if trim[0] == '[' {
		var docs []frameDoc
		if err := json.Unmarshal([]byte(trim), &docs); err != nil {
			return nil, err
		}
		frames := make([]model.Frame, 0, len(docs))
		for _, doc := range docs {
			frame, err := frameFromDoc(doc, defaultCamera)
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame)
		}
		return frames, nil
	}
	frame, err := ParseFrameBytes([]byte(trim), defaultCamera)
	if err != nil {
		return nil, err
	}
	return []model.Frame{frame}, nil
}

func frameFromDoc(doc frameDoc, defaultCamera string) (model.Frame, error) {
	ts, err := parseTimestamp(doc.Timestamp)
	if err != nil {
		return model.Frame{}, err
	}
	frame := model.Frame{
		Timestamp:  ts,
		CameraID:   doc.CameraID,
		Detections: make([]model.Detection, 0, len(doc.Detections)),
	}
	if frame.CameraID == "" {
		frame.CameraID = defaultCamera
	}
	for _, d := range doc.Detections {
		det := model.Detection{
			Box:        d.Box,
			Confidence: d.Confidence,
			Landmarks:  make([]model.Landmark, len(d.Landmarks)),
		}
		for i, lm := range d.Landmarks {
			det.Landmarks[i] = model.Landmark(lm)
		}
		frame.Detections = append(frame.Detections, det)
	}
	return frame, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	trim := strings.TrimSpace(string(raw))
	if trim == "" || trim == "null" {
		return time.Time{}, nil
	}
	if trim[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp: %q", s)
	}
	num, err := strconv.ParseFloat(trim, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp: %q", trim)
	}
	// Heuristic: values past the year-33658 mark in seconds are epoch millis.
	if num > 1e12 {
		return time.UnixMilli(int64(num)), nil
	}
	sec := int64(num)
	nsec := int64((num - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), nil
}
