// Package exercise implements the per-person repetition state machine for
// fitness mode.
package exercise

import (
	"fmt"
	"time"

	"visiontrack/internal/config"
	"visiontrack/internal/geom"
	"visiontrack/internal/model"
)

// Machine tracks one person through the
// STANDING → DESCENDING → BOTTOM → ASCENDING → STANDING cycle.
//
// The machine acts on a moving average of the raw joint angle, and a state
// change only commits after the candidate state has held for MinStateDuration
// consecutive frames. Shorter excursions leave the committed state untouched.
type Machine struct {
	personID int64
	exercise string
	profile  config.ExerciseProfile

	smoothingWindow  int
	minStateDuration int

	window   []float64
	smoothed float64
	prev     float64
	hasPrev  bool

	state        model.ExerciseState
	pending      model.ExerciseState
	pendingCount int

	reachedBottom bool
	minAngle      float64
	repCount      int
}

// NewMachine fails on an exercise type with no configured profile, before any
// state is created.
func NewMachine(personID int64, exercise string, cfg config.FitnessConfig) (*Machine, error) {
	profile, ok := cfg.Exercises[exercise]
	if !ok {
		return nil, fmt.Errorf("unknown exercise type: %q", exercise)
	}
	return &Machine{
		personID:         personID,
		exercise:         exercise,
		profile:          profile,
		smoothingWindow:  cfg.SmoothingWindow,
		minStateDuration: cfg.MinStateDuration,
		state:            model.StateUnknown,
	}, nil
}

// Update feeds one raw angle observation. It returns a RepEvent when this
// frame completed a full cycle, and never returns the same rep twice.
func (m *Machine) Update(rawAngle float64, at time.Time) (model.RepEvent, bool) {
	m.push(rawAngle)
	a := m.smoothed

	candidate := m.candidateState(a)
	committed := m.debounce(candidate)

	if m.state == model.StateBottom {
		if !m.reachedBottom || m.beyond(a, m.minAngle) {
			m.minAngle = a
		}
		m.reachedBottom = true
	}

	if committed && m.state == model.StateStanding && m.reachedBottom {
		m.repCount++
		ev := model.RepEvent{
			Timestamp:    at,
			PersonID:     m.personID,
			Exercise:     m.exercise,
			RepNumber:    m.repCount,
			Angle:        m.minAngle,
			DepthQuality: m.classifyDepth(m.minAngle),
			State:        m.state,
		}
		m.reachedBottom = false
		m.minAngle = 0
		return ev, true
	}
	return model.RepEvent{}, false
}

func (m *Machine) push(rawAngle float64) {
	m.window = append(m.window, rawAngle)
	if len(m.window) > m.smoothingWindow {
		m.window = m.window[1:]
	}
	sum := 0.0
	for _, v := range m.window {
		sum += v
	}
	m.prev = m.smoothed
	m.smoothed = sum / float64(len(m.window))
	if len(m.window) > 1 {
		m.hasPrev = true
	}
}

// candidateState maps the smoothed angle onto the state the machine would be
// in, given the current committed state. Crossing both thresholds within one
// smoothed step skips the transient phase; the cycle accounting only needs
// the bottom to have been committed.
func (m *Machine) candidateState(a float64) model.ExerciseState {
	switch {
	case m.pastUpright(a):
		return model.StateStanding
	case m.pastBottom(a):
		return model.StateBottom
	}
	// Intermediate band: direction of travel decides.
	switch m.state {
	case model.StateStanding, model.StateUnknown:
		return model.StateDescending
	case model.StateDescending:
		if m.rising(a) {
			return model.StateAscending
		}
		return model.StateDescending
	case model.StateBottom:
		if m.rising(a) {
			return model.StateAscending
		}
		return model.StateDescending
	case model.StateAscending:
		if m.falling(a) {
			return model.StateDescending
		}
		return model.StateAscending
	}
	return model.StateDescending
}

// debounce commits candidate once it has held for minStateDuration
// consecutive frames. Returns true on the frame a new state commits.
func (m *Machine) debounce(candidate model.ExerciseState) bool {
	if candidate == m.state {
		m.pending = ""
		m.pendingCount = 0
		return false
	}
	if candidate != m.pending {
		m.pending = candidate
		m.pendingCount = 1
	} else {
		m.pendingCount++
	}
	if m.pendingCount < m.minStateDuration {
		return false
	}
	m.state = m.pending
	m.pending = ""
	m.pendingCount = 0
	return true
}

// pastUpright and pastBottom fold the inverted-profile case (bicep curl,
// where the working phase shrinks the angle) into one comparison.
func (m *Machine) pastUpright(a float64) bool {
	if m.profile.Inverted {
		return a < m.profile.UprightThreshold
	}
	return a > m.profile.UprightThreshold
}

func (m *Machine) pastBottom(a float64) bool {
	if m.profile.Inverted {
		return a > m.profile.BottomThreshold
	}
	return a < m.profile.BottomThreshold
}

// beyond reports whether a is deeper into the cycle's low point than b.
func (m *Machine) beyond(a, b float64) bool {
	if m.profile.Inverted {
		return a > b
	}
	return a < b
}

func (m *Machine) rising(a float64) bool {
	if !m.hasPrev {
		return false
	}
	if m.profile.Inverted {
		return a < m.prev
	}
	return a > m.prev
}

func (m *Machine) falling(a float64) bool {
	if !m.hasPrev {
		return false
	}
	if m.profile.Inverted {
		return a > m.prev
	}
	return a < m.prev
}

func (m *Machine) classifyDepth(minAngle float64) model.DepthQuality {
	lo, hi := m.profile.GoodDepthMin, m.profile.GoodDepthMax
	if lo == 0 && hi == 0 {
		return model.DepthUnknown
	}
	switch {
	case minAngle >= lo && minAngle <= hi:
		return model.DepthGood
	case minAngle < lo:
		if m.profile.Inverted {
			return model.DepthTooShallow
		}
		return model.DepthTooDeep
	default:
		if m.profile.Inverted {
			return model.DepthTooDeep
		}
		return model.DepthTooShallow
	}
}

func (m *Machine) State() model.ExerciseState { return m.state }
func (m *Machine) RepCount() int              { return m.repCount }
func (m *Machine) SmoothedAngle() float64     { return m.smoothed }

// Reset zeroes the rep counter and angle history. The person identity and
// exercise binding stay.
func (m *Machine) Reset() {
	m.window = nil
	m.smoothed = 0
	m.prev = 0
	m.hasPrev = false
	m.state = model.StateUnknown
	m.pending = ""
	m.pendingCount = 0
	m.reachedBottom = false
	m.minAngle = 0
	m.repCount = 0
}

// TrackedAngle computes the raw joint angle this machine watches, averaging
// the left and right side when both are visible. The second return is false
// when neither side has enough visible joints this frame.
func TrackedAngle(exercise string, det *model.Detection, minVisibility float64) (float64, bool) {
	type triple struct{ a, b, c int }
	var left, right triple
	switch exercise {
	case "pushup":
		left = triple{model.LandmarkLeftShoulder, model.LandmarkLeftElbow, model.LandmarkLeftWrist}
		right = triple{model.LandmarkRightShoulder, model.LandmarkRightElbow, model.LandmarkRightWrist}
	case "bicep_curl":
		left = triple{model.LandmarkLeftShoulder, model.LandmarkLeftElbow, model.LandmarkLeftWrist}
		right = triple{model.LandmarkRightShoulder, model.LandmarkRightElbow, model.LandmarkRightWrist}
	default: // squat and other leg work use hip-knee-ankle
		left = triple{model.LandmarkLeftHip, model.LandmarkLeftKnee, model.LandmarkLeftAnkle}
		right = triple{model.LandmarkRightHip, model.LandmarkRightKnee, model.LandmarkRightAnkle}
	}
	sideAngle := func(t triple) float64 {
		a, okA := det.Landmark(t.a, minVisibility)
		b, okB := det.Landmark(t.b, minVisibility)
		c, okC := det.Landmark(t.c, minVisibility)
		if !okA || !okB || !okC {
			return 0
		}
		return geom.Angle(a, b, c)
	}
	return geom.AverageAngles(sideAngle(left), sideAngle(right))
}
