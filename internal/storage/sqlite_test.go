package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"visiontrack/internal/config"
	"visiontrack/internal/model"
)

func configDisabled() config.StorageConfig {
	return config.StorageConfig{Enabled: false, Driver: "sqlite"}
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	session := model.Session{
		ID:        "sess-1",
		Mode:      model.ModeFitness,
		Exercise:  "squat",
		StartedAt: started,
	}
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	// Counter updates upsert onto the same row.
	session.TotalReps = 12
	session.PeopleSeen = 2
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("upsert session: %v", err)
	}

	ended := started.Add(time.Minute)
	session.EndedAt = &ended
	if err := s.CloseSession(ctx, session); err != nil {
		t.Fatalf("close session: %v", err)
	}

	list, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("sessions: %d", len(list))
	}
	got := list[0]
	if got.ID != "sess-1" || got.Mode != model.ModeFitness || got.Exercise != "squat" {
		t.Fatalf("session: %+v", got)
	}
	if got.TotalReps != 12 || got.PeopleSeen != 2 {
		t.Fatalf("counters: %+v", got)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("ended_at: %v", got.EndedAt)
	}
}

func TestSaveAlertAndRep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alert := model.Alert{
		ID:          "alert-1",
		Timestamp:   time.Now().UTC(),
		Type:        model.AlertFall,
		PersonID:    4,
		Location:    model.Point{X: 10, Y: 20},
		Confidence:  0.9,
		Description: "Possible fall detected (angle: 80.0 deg)",
		SessionID:   "sess-1",
	}
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("save alert: %v", err)
	}

	rep := model.RepEvent{
		Timestamp:    time.Now().UTC(),
		PersonID:     4,
		Exercise:     "squat",
		RepNumber:    1,
		Angle:        95,
		DepthQuality: model.DepthGood,
		State:        model.StateStanding,
		SessionID:    "sess-1",
	}
	if err := s.SaveRepEvent(ctx, rep); err != nil {
		t.Fatalf("save rep: %v", err)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		err := s.SaveSession(ctx, model.Session{
			ID:        "sess-" + string(rune('a'+i)),
			Mode:      model.ModeSurveillance,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	list, err := s.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sessions: %d", len(list))
	}
	if list[0].ID != "sess-c" {
		t.Fatalf("expected newest first, got %s", list[0].ID)
	}
}

func TestDisabledStorageIsNil(t *testing.T) {
	s, err := NewStore(configDisabled())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil store when disabled")
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	cfg := configDisabled()
	cfg.Enabled = true
	cfg.Driver = "oracle"
	if _, err := NewStore(cfg); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
