package model

import "time"

type Mode string

const (
	ModeFitness      Mode = "fitness"
	ModeSurveillance Mode = "surveillance"
)

// Landmark is a single detected body joint. Coordinates are pixels in the
// frame; Visibility is the detector's per-joint confidence in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Indices into the 33-point pose landmark layout.
const (
	LandmarkNose          = 0
	LandmarkLeftShoulder  = 11
	LandmarkRightShoulder = 12
	LandmarkLeftElbow     = 13
	LandmarkRightElbow    = 14
	LandmarkLeftWrist     = 15
	LandmarkRightWrist    = 16
	LandmarkLeftHip       = 23
	LandmarkRightHip      = 24
	LandmarkLeftKnee      = 25
	LandmarkRightKnee     = 26
	LandmarkLeftAnkle     = 27
	LandmarkRightAnkle    = 28

	LandmarkCount = 33
)

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one skeleton found in a frame by the external pose detector.
type Detection struct {
	Box        BBox       `json:"box"`
	Landmarks  []Landmark `json:"landmarks"`
	Confidence float64    `json:"confidence"`
}

// Landmark returns the landmark at index i, reporting whether it is present
// and visible enough to use.
func (d *Detection) Landmark(i int, minVisibility float64) (Point, bool) {
	if i < 0 || i >= len(d.Landmarks) {
		return Point{}, false
	}
	lm := d.Landmarks[i]
	if lm.Visibility < minVisibility {
		return Point{}, false
	}
	return Point{X: lm.X, Y: lm.Y}, true
}

// Frame is the per-frame payload handed to the engine: every skeleton the
// detector found, stamped with the capture time.
type Frame struct {
	Timestamp  time.Time   `json:"timestamp"`
	CameraID   string      `json:"camera_id,omitempty"`
	Detections []Detection `json:"detections"`
}

type ExerciseState string

const (
	StateUnknown    ExerciseState = "unknown"
	StateStanding   ExerciseState = "standing"
	StateDescending ExerciseState = "descending"
	StateBottom     ExerciseState = "bottom"
	StateAscending  ExerciseState = "ascending"
)

type DepthQuality string

const (
	DepthGood       DepthQuality = "good"
	DepthTooShallow DepthQuality = "too_shallow"
	DepthTooDeep    DepthQuality = "too_deep"
	DepthUnknown    DepthQuality = "unknown"
)

// RepEvent is emitted exactly once per completed exercise cycle.
type RepEvent struct {
	Timestamp    time.Time     `json:"timestamp"`
	PersonID     int64         `json:"person_id"`
	Exercise     string        `json:"exercise"`
	RepNumber    int           `json:"rep_number"`
	Angle        float64       `json:"angle"`
	DepthQuality DepthQuality  `json:"depth_quality"`
	State        ExerciseState `json:"state"`
	SessionID    string        `json:"session_id,omitempty"`
}

type AlertType string

const (
	AlertPersonDetected AlertType = "person_detected"
	AlertZoneEntry      AlertType = "restricted_zone_entry"
	AlertRapidMovement  AlertType = "rapid_movement"
	AlertFall           AlertType = "fall_detected"
	AlertLoitering      AlertType = "loitering"
)

// Severity orders alerts for display. It never suppresses an alert.
func (t AlertType) Severity() int {
	switch t {
	case AlertFall:
		return 5
	case AlertZoneEntry:
		return 4
	case AlertRapidMovement:
		return 3
	case AlertLoitering:
		return 2
	case AlertPersonDetected:
		return 1
	}
	return 0
}

// Alert is a surveillance event that passed the cooldown gate.
// Immutable once created, except Resolved.
type Alert struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        AlertType `json:"alert_type"`
	PersonID    int64     `json:"person_id"`
	Location    Point     `json:"location"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description"`
	SessionID   string    `json:"session_id,omitempty"`
	Resolved    bool      `json:"resolved"`
}

// Zone is a configured polygonal region. Loaded once at startup,
// read-only to the engine.
type Zone struct {
	ID        int       `json:"zone_id" yaml:"zone_id"`
	Name      string    `json:"name" yaml:"name"`
	Points    []Point   `json:"points" yaml:"points"`
	AlertType AlertType `json:"alert_type" yaml:"alert_type"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
}

// StatsSnapshot is a fully-formed copy of the rolling counters. Consumers
// never see partially updated state.
type StatsSnapshot struct {
	FPS           float64          `json:"fps"`
	ActivePersons int              `json:"active_persons"`
	TotalReps     int64            `json:"total_reps"`
	TotalAlerts   int64            `json:"total_alerts"`
	AlertsByType  map[string]int64 `json:"alerts_by_type"`
	Running       bool             `json:"running"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Session groups the events of one engine run for persistence.
type Session struct {
	ID           string     `json:"session_id"`
	Mode         Mode       `json:"mode"`
	Exercise     string     `json:"exercise,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	TotalReps    int64      `json:"total_reps"`
	PeopleSeen   int64      `json:"people_seen"`
	AlertsRaised int64      `json:"alerts_raised"`
}
