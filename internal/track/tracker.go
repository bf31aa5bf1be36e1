// Package track assigns persistent identities to per-frame detections.
package track

import (
	"sort"
	"time"

	"github.com/bmharper/ringbuffer"

	"visiontrack/internal/geom"
	"visiontrack/internal/model"
)

// TimedPosition is one centroid observation of a tracked person.
type TimedPosition struct {
	Point model.Point
	Time  time.Time
}

// Person is one tracked identity. IDs are monotonic and never reused.
type Person struct {
	ID            int64
	LastSeenFrame int64
	MissingFrames int
	LastDetection model.Detection
	History       ringbuffer.RingP[TimedPosition]
}

// Centroid returns the most recent observed centroid.
func (p *Person) Centroid() model.Point {
	if p.History.Len() == 0 {
		return model.Point{}
	}
	return p.History.Peek(p.History.Len() - 1).Point
}

// Speed returns the instantaneous speed in pixels/second over the last two
// observations, or 0 if there is not enough history.
func (p *Person) Speed() float64 {
	n := p.History.Len()
	if n < 2 {
		return 0
	}
	cur := p.History.Peek(n - 1)
	prev := p.History.Peek(n - 2)
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return 0
	}
	return geom.Distance(cur.Point, prev.Point) / dt
}

// Update is the result of matching one frame against the active tracks.
type Update struct {
	// Matched maps each live person ID to the detection assigned to it this
	// frame. Persons missing this frame are absent.
	Matched map[int64]model.Detection
	NewIDs  []int64
	Retired []int64
}

type Tracker struct {
	maxMatchDistance float64
	maxMissingFrames int
	historySize      int

	persons    map[int64]*Person
	nextID     int64
	frameIndex int64
}

func NewTracker(maxMatchDistance float64, maxMissingFrames, positionHistory int) *Tracker {
	return &Tracker{
		maxMatchDistance: maxMatchDistance,
		maxMissingFrames: maxMissingFrames,
		historySize:      nextPowerOf2(positionHistory),
		persons:          make(map[int64]*Person),
		nextID:           1,
	}
}

type candidate struct {
	trackID  int64
	detIndex int
	distance float64
}

// Update matches detections to active tracks with greedy nearest-neighbour
// assignment over centroid distance. Each track and each detection is
// consumed at most once; pairs beyond the max match distance are rejected.
// Unmatched detections spawn fresh identities; tracks missing for more than
// the configured number of frames are retired.
func (t *Tracker) Update(detections []model.Detection, at time.Time) Update {
	t.frameIndex++
	up := Update{Matched: make(map[int64]model.Detection, len(detections))}

	centroids := make([]model.Point, len(detections))
	for i := range detections {
		centroids[i] = geom.Centroid(detections[i].Box)
	}

	candidates := make([]candidate, 0, len(detections)*len(t.persons))
	for id, p := range t.persons {
		c := p.Centroid()
		for i := range detections {
			d := geom.Distance(c, centroids[i])
			if d <= t.maxMatchDistance {
				candidates = append(candidates, candidate{trackID: id, detIndex: i, distance: d})
			}
		}
	}
	// Ascending distance; equal distances prefer the older (lower) identity
	// so matching is deterministic regardless of map iteration order.
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].distance != candidates[b].distance {
			return candidates[a].distance < candidates[b].distance
		}
		if candidates[a].trackID != candidates[b].trackID {
			return candidates[a].trackID < candidates[b].trackID
		}
		return candidates[a].detIndex < candidates[b].detIndex
	})

	usedTrack := make(map[int64]bool, len(t.persons))
	usedDet := make(map[int]bool, len(detections))
	for _, c := range candidates {
		if usedTrack[c.trackID] || usedDet[c.detIndex] {
			continue
		}
		usedTrack[c.trackID] = true
		usedDet[c.detIndex] = true
		p := t.persons[c.trackID]
		p.LastSeenFrame = t.frameIndex
		p.MissingFrames = 0
		p.LastDetection = detections[c.detIndex]
		p.History.Add(TimedPosition{Point: centroids[c.detIndex], Time: at})
		up.Matched[c.trackID] = detections[c.detIndex]
	}

	for i := range detections {
		if usedDet[i] {
			continue
		}
		id := t.nextID
		t.nextID++
		p := &Person{
			ID:            id,
			LastSeenFrame: t.frameIndex,
			LastDetection: detections[i],
			History:       ringbuffer.NewRingP[TimedPosition](t.historySize),
		}
		p.History.Add(TimedPosition{Point: centroids[i], Time: at})
		t.persons[id] = p
		up.Matched[id] = detections[i]
		up.NewIDs = append(up.NewIDs, id)
	}

	for id, p := range t.persons {
		if usedTrack[id] || containsID(up.NewIDs, id) {
			continue
		}
		p.MissingFrames++
		if p.MissingFrames > t.maxMissingFrames {
			up.Retired = append(up.Retired, id)
			delete(t.persons, id)
		}
	}
	sort.Slice(up.NewIDs, func(a, b int) bool { return up.NewIDs[a] < up.NewIDs[b] })
	sort.Slice(up.Retired, func(a, b int) bool { return up.Retired[a] < up.Retired[b] })
	return up
}

// Person returns the live track for id, or nil.
func (t *Tracker) Person(id int64) *Person {
	return t.persons[id]
}

// ActiveCount returns the number of live tracks, including ones missing for
// fewer than the retirement limit.
func (t *Tracker) ActiveCount() int {
	return len(t.persons)
}

// Reset drops all tracks. The identity counter is not rewound, so IDs from
// before the reset are never handed out again.
func (t *Tracker) Reset() {
	t.persons = make(map[int64]*Person)
	t.frameIndex = 0
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func nextPowerOf2(v int) int {
	if v <= 1 {
		return 1
	}
	n := 1
	for n < v {
		n *= 2
	}
	return n
}
