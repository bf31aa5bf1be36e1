package alerts

import (
	"fmt"
	"testing"
	"time"

	"visiontrack/internal/model"
)

func alertN(n int, at time.Time) model.Alert {
	return model.Alert{
		ID:        fmt.Sprintf("a-%d", n),
		Timestamp: at,
		Type:      model.AlertLoitering,
		PersonID:  int64(n % 3),
	}
}

func TestBoundedBuffer(t *testing.T) {
	s := NewStore(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(alertN(i, base.Add(time.Duration(i)*time.Second)))
	}
	list := s.List(0)
	if len(list) != 3 {
		t.Fatalf("len: %d", len(list))
	}
	if list[0].ID != "a-2" || list[2].ID != "a-4" {
		t.Fatalf("oldest not evicted: %s..%s", list[0].ID, list[2].ID)
	}
}

func TestListLimit(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(alertN(i, base))
	}
	list := s.List(2)
	if len(list) != 2 {
		t.Fatalf("len: %d", len(list))
	}
	if list[1].ID != "a-4" {
		t.Fatalf("expected newest last, got %s", list[1].ID)
	}
}

func TestSince(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(alertN(i, base.Add(time.Duration(i)*time.Second)))
	}
	list := s.Since(base.Add(3 * time.Second))
	if len(list) != 2 {
		t.Fatalf("len: %d", len(list))
	}
}

func TestByPerson(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	for i := 0; i < 6; i++ {
		s.Add(alertN(i, base))
	}
	list := s.ByPerson(1)
	if len(list) != 2 {
		t.Fatalf("len: %d", len(list))
	}
	for _, a := range list {
		if a.PersonID != 1 {
			t.Fatalf("person: %d", a.PersonID)
		}
	}
}

func TestResolve(t *testing.T) {
	s := NewStore(10)
	s.Add(alertN(0, time.Now()))
	s.Add(alertN(1, time.Now()))

	if !s.Resolve("a-0") {
		t.Fatalf("resolve known alert failed")
	}
	if s.Resolve("a-0") != true {
		t.Fatalf("resolving twice should still report success")
	}
	if s.Resolve("missing") {
		t.Fatalf("resolve unknown alert succeeded")
	}
	unresolved := s.Unresolved()
	if len(unresolved) != 1 || unresolved[0].ID != "a-1" {
		t.Fatalf("unresolved: %+v", unresolved)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(10)
	s.Add(alertN(0, time.Now()))
	s.Clear()
	if len(s.List(0)) != 0 {
		t.Fatalf("clear left alerts behind")
	}
}
