package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visiontrack/internal/model"
)

func detAt(x, y float64) model.Detection {
	return model.Detection{
		Box:        model.BBox{X: x - 25, Y: y - 50, Width: 50, Height: 100},
		Confidence: 0.9,
	}
}

func TestIdentityPersistsAcrossFrames(t *testing.T) {
	tr := NewTracker(100, 30, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100)}, base)
	require.Len(t, up.NewIDs, 1)
	id := up.NewIDs[0]

	up = tr.Update([]model.Detection{detAt(110, 100)}, base.Add(100*time.Millisecond))
	assert.Empty(t, up.NewIDs)
	_, ok := up.Matched[id]
	assert.True(t, ok, "same identity should match the nearby detection")
}

func TestDistantDetectionSpawnsNewIdentity(t *testing.T) {
	tr := NewTracker(100, 30, 16)
	base := time.Now()

	tr.Update([]model.Detection{detAt(100, 100)}, base)
	up := tr.Update([]model.Detection{detAt(500, 100)}, base.Add(100*time.Millisecond))
	require.Len(t, up.NewIDs, 1)
	assert.Equal(t, 2, tr.ActiveCount())
}

func TestNearestNeighbourWins(t *testing.T) {
	tr := NewTracker(100, 30, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100), detAt(180, 100)}, base)
	require.Len(t, up.NewIDs, 2)
	left, right := up.NewIDs[0], up.NewIDs[1]

	// Both drift a little; each keeps its own identity.
	up = tr.Update([]model.Detection{detAt(105, 100), detAt(185, 100)}, base.Add(100*time.Millisecond))
	assert.Empty(t, up.NewIDs)
	assert.InDelta(t, 105.0, tr.Person(left).Centroid().X, 0.01)
	assert.InDelta(t, 185.0, tr.Person(right).Centroid().X, 0.01)
}

func TestRetirementAfterMissingFrames(t *testing.T) {
	tr := NewTracker(100, 2, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100)}, base)
	id := up.NewIDs[0]

	up = tr.Update(nil, base.Add(100*time.Millisecond))
	assert.Empty(t, up.Retired)
	up = tr.Update(nil, base.Add(200*time.Millisecond))
	assert.Empty(t, up.Retired)
	up = tr.Update(nil, base.Add(300*time.Millisecond))
	require.Equal(t, []int64{id}, up.Retired)
	assert.Zero(t, tr.ActiveCount())
}

func TestMissingCounterResetsOnMatch(t *testing.T) {
	tr := NewTracker(100, 2, 16)
	base := time.Now()

	tr.Update([]model.Detection{detAt(100, 100)}, base)
	tr.Update(nil, base.Add(100*time.Millisecond))
	tr.Update(nil, base.Add(200*time.Millisecond))
	// Reappears just in time.
	up := tr.Update([]model.Detection{detAt(102, 100)}, base.Add(300*time.Millisecond))
	assert.Empty(t, up.Retired)
	assert.Empty(t, up.NewIDs)
	// The missing budget is full again.
	tr.Update(nil, base.Add(400*time.Millisecond))
	up = tr.Update(nil, base.Add(500*time.Millisecond))
	assert.Empty(t, up.Retired)
}

func TestIDsNeverReused(t *testing.T) {
	tr := NewTracker(100, 0, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100)}, base)
	first := up.NewIDs[0]
	up = tr.Update(nil, base.Add(100*time.Millisecond))
	require.Equal(t, []int64{first}, up.Retired)

	up = tr.Update([]model.Detection{detAt(100, 100)}, base.Add(200*time.Millisecond))
	require.Len(t, up.NewIDs, 1)
	assert.Greater(t, up.NewIDs[0], first)
}

func TestResetKeepsIdentityCounter(t *testing.T) {
	tr := NewTracker(100, 30, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100)}, base)
	first := up.NewIDs[0]
	tr.Reset()
	assert.Zero(t, tr.ActiveCount())

	up = tr.Update([]model.Detection{detAt(100, 100)}, base.Add(time.Second))
	require.Len(t, up.NewIDs, 1)
	assert.Greater(t, up.NewIDs[0], first)
}

func TestSpeedFromHistory(t *testing.T) {
	tr := NewTracker(200, 30, 16)
	base := time.Now()

	up := tr.Update([]model.Detection{detAt(100, 100)}, base)
	id := up.NewIDs[0]
	tr.Update([]model.Detection{detAt(180, 100)}, base.Add(200*time.Millisecond))

	p := tr.Person(id)
	require.NotNil(t, p)
	assert.InDelta(t, 400.0, p.Speed(), 0.01)
}

func TestSpeedNeedsTwoObservations(t *testing.T) {
	tr := NewTracker(100, 30, 16)
	up := tr.Update([]model.Detection{detAt(100, 100)}, time.Now())
	p := tr.Person(up.NewIDs[0])
	require.NotNil(t, p)
	assert.Zero(t, p.Speed())
}
