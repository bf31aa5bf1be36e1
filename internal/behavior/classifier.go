// Package behavior runs the per-person surveillance checks and produces
// candidate alerts. Candidates are independent: several can fire for the same
// person in the same frame. The cooldown gate downstream decides what is
// actually emitted.
package behavior

import (
	"fmt"
	"time"

	"visiontrack/internal/config"
	"visiontrack/internal/geom"
	"visiontrack/internal/model"
	"visiontrack/internal/track"
)

// Candidate is an alert before the deduplication gate: no ID or session
// attached yet.
type Candidate struct {
	Type        model.AlertType
	PersonID    int64
	Location    model.Point
	Confidence  float64
	Description string
	Timestamp   time.Time
}

type personState struct {
	loiterAccum  time.Duration
	lastObserved time.Time
	fallSince    time.Time
	falling      bool
	inZones      map[int]bool
}

type Classifier struct {
	cfg             config.SurveillanceConfig
	loiterDuration  time.Duration
	fallMinDuration time.Duration
	zones           []model.Zone
	persons         map[int64]*personState
}

func NewClassifier(cfg config.SurveillanceConfig) *Classifier {
	zones := make([]model.Zone, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		if z.Enabled && len(z.Points) >= 3 {
			zones = append(zones, z)
		}
	}
	return &Classifier{
		cfg:             cfg,
		loiterDuration:  cfg.LoiterDuration.Std(),
		fallMinDuration: cfg.FallMinDuration.Std(),
		zones:           zones,
		persons:         make(map[int64]*personState),
	}
}

// OnNewPerson produces the person-detected candidate for a freshly created
// identity. Fires once per identity; retirements drop the state so a retired
// ID can never fire again (IDs are not reused anyway).
func (c *Classifier) OnNewPerson(id int64, location model.Point, at time.Time) Candidate {
	c.persons[id] = &personState{inZones: make(map[int]bool), lastObserved: at}
	return Candidate{
		Type:        model.AlertPersonDetected,
		PersonID:    id,
		Location:    location,
		Confidence:  0.8,
		Description: "New person detected in surveillance area",
		Timestamp:   at,
	}
}

// OnRetired discards per-person state for a retired identity.
func (c *Classifier) OnRetired(id int64) {
	delete(c.persons, id)
}

// Analyze runs every enabled check for one tracked person on one frame.
// The checks are not mutually exclusive.
func (c *Classifier) Analyze(p *track.Person, det *model.Detection, at time.Time) []Candidate {
	st := c.persons[p.ID]
	if st == nil {
		st = &personState{inZones: make(map[int]bool), lastObserved: at}
		c.persons[p.ID] = st
	}

	var out []Candidate
	centroid := p.Centroid()
	speed := p.Speed()

	if c.cfg.RapidMovementThreshold > 0 && speed > c.cfg.RapidMovementThreshold {
		out = append(out, Candidate{
			Type:        model.AlertRapidMovement,
			PersonID:    p.ID,
			Location:    centroid,
			Confidence:  0.8,
			Description: fmt.Sprintf("Rapid movement detected: %.1f px/s", speed),
			Timestamp:   at,
		})
	}

	if cand, ok := c.checkLoitering(p.ID, st, speed, centroid, at); ok {
		out = append(out, cand)
	}
	if cand, ok := c.checkFall(p.ID, st, det, centroid, at); ok {
		out = append(out, cand)
	}
	out = append(out, c.checkZones(p.ID, st, centroid, at)...)

	st.lastObserved = at
	return out
}

// checkLoitering accumulates the time a person spends below the low-speed
// threshold; movement above it resets the accumulator.
func (c *Classifier) checkLoitering(id int64, st *personState, speed float64, loc model.Point, at time.Time) (Candidate, bool) {
	if c.loiterDuration <= 0 {
		return Candidate{}, false
	}
	elapsed := at.Sub(st.lastObserved)
	if elapsed < 0 {
		elapsed = 0
	}
	if speed >= c.cfg.LoiterSpeedThreshold {
		st.loiterAccum = 0
		return Candidate{}, false
	}
	st.loiterAccum += elapsed
	if st.loiterAccum < c.loiterDuration {
		return Candidate{}, false
	}
	return Candidate{
		Type:        model.AlertLoitering,
		PersonID:    id,
		Location:    loc,
		Confidence:  0.7,
		Description: fmt.Sprintf("Loitering detected for %.1f seconds", st.loiterAccum.Seconds()),
		Timestamp:   at,
	}, true
}

// checkFall requires the torso inclination to stay past the threshold for
// FallMinDuration before firing, so a brief bend is not a fall.
func (c *Classifier) checkFall(id int64, st *personState, det *model.Detection, loc model.Point, at time.Time) (Candidate, bool) {
	if c.cfg.FallAngleThreshold <= 0 {
		return Candidate{}, false
	}
	angle, ok := torsoInclination(det, c.cfg.MinVisibility)
	if !ok || angle <= c.cfg.FallAngleThreshold {
		st.falling = false
		return Candidate{}, false
	}
	if !st.falling {
		st.falling = true
		st.fallSince = at
	}
	if at.Sub(st.fallSince) < c.fallMinDuration {
		return Candidate{}, false
	}
	confidence := (angle - c.cfg.FallAngleThreshold) / 45
	if confidence > 0.9 {
		confidence = 0.9
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	return Candidate{
		Type:        model.AlertFall,
		PersonID:    id,
		Location:    loc,
		Confidence:  confidence,
		Description: fmt.Sprintf("Possible fall detected (angle: %.1f deg)", angle),
		Timestamp:   at,
	}, true
}

// checkZones fires a zone's alert type on entry only. Leaving the zone clears
// the flag so a later re-entry alerts again.
func (c *Classifier) checkZones(id int64, st *personState, centroid model.Point, at time.Time) []Candidate {
	var out []Candidate
	for _, zone := range c.zones {
		inside := geom.PolygonContains(zone.Points, centroid)
		was := st.inZones[zone.ID]
		switch {
		case inside && !was:
			st.inZones[zone.ID] = true
			alertType := zone.AlertType
			if alertType == "" {
				alertType = model.AlertZoneEntry
			}
			out = append(out, Candidate{
				Type:        alertType,
				PersonID:    id,
				Location:    centroid,
				Confidence:  0.9,
				Description: fmt.Sprintf("Person entered %s", zone.Name),
				Timestamp:   at,
			})
		case !inside && was:
			delete(st.inZones, zone.ID)
		}
	}
	return out
}

// torsoInclination averages the hip→shoulder deviation from vertical over the
// sides that are visible.
func torsoInclination(det *model.Detection, minVisibility float64) (float64, bool) {
	side := func(hipIdx, shoulderIdx int) (float64, bool) {
		hip, okH := det.Landmark(hipIdx, minVisibility)
		shoulder, okS := det.Landmark(shoulderIdx, minVisibility)
		if !okH || !okS {
			return 0, false
		}
		return geom.Inclination(hip, shoulder), true
	}
	left, okL := side(model.LandmarkLeftHip, model.LandmarkLeftShoulder)
	right, okR := side(model.LandmarkRightHip, model.LandmarkRightShoulder)
	switch {
	case okL && okR:
		return (left + right) / 2, true
	case okL:
		return left, true
	case okR:
		return right, true
	}
	return 0, false
}

// Reset drops all per-person classifier state.
func (c *Classifier) Reset() {
	c.persons = make(map[int64]*personState)
}
