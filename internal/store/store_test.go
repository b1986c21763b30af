package store

import (
	"testing"
	"time"

	"github.com/mousefad/klipper-timeout/internal/fingerprint"
)

func TestObserve(t *testing.T) {
	s := New()
	fp := fingerprint.Of("foo")
	t0 := time.Now()

	if !s.Observe(fp, t0) {
		t.Errorf("Expected first observation to report a new fingerprint")
	}

	if s.Observe(fp, t0.Add(time.Minute)) {
		t.Errorf("Expected second observation to report an existing fingerprint")
	}

	// the first-seen time must not regress on re-observation
	age, ok := s.AgeOf(fp, t0.Add(time.Minute))
	if !ok {
		t.Fatalf("Expected fingerprint to be tracked")
	}
	if age != time.Minute {
		t.Errorf("Expected age %v but got %v instead", time.Minute, age)
	}
}

func TestAgeOf(t *testing.T) {
	s := New()
	t0 := time.Now()

	if _, ok := s.AgeOf(fingerprint.Of("untracked"), t0); ok {
		t.Errorf("Expected no age for an untracked fingerprint")
	}

	fp := fingerprint.Of("foo")
	s.Observe(fp, t0)

	age, ok := s.AgeOf(fp, t0.Add(90*time.Second))
	if !ok || age != 90*time.Second {
		t.Errorf("Expected age %v but got %v (ok=%v) instead", 90*time.Second, age, ok)
	}
}

func TestDrop(t *testing.T) {
	s := New()
	fp := fingerprint.Of("foo")
	t0 := time.Now()

	s.Observe(fp, t0)
	s.Drop(fp)

	if _, ok := s.AgeOf(fp, t0); ok {
		t.Errorf("Expected dropped fingerprint to be untracked")
	}

	// a re-appearing entry starts over as a brand-new record
	if !s.Observe(fp, t0.Add(time.Hour)) {
		t.Errorf("Expected re-observation after drop to report a new fingerprint")
	}
}

func TestReconcile(t *testing.T) {
	s := New()
	t0 := time.Now()

	present := fingerprint.Of("still here")
	evicted := fingerprint.Of("evicted by the manager")
	s.Observe(present, t0)
	s.Observe(evicted, t0)

	live := map[fingerprint.Fingerprint]struct{}{present: {}}

	if dropped := s.Reconcile(live); dropped != 1 {
		t.Errorf("Expected 1 dropped record but got %v instead", dropped)
	}

	if _, ok := s.AgeOf(present, t0); !ok {
		t.Errorf("Expected live fingerprint to remain tracked")
	}
	if _, ok := s.AgeOf(evicted, t0); ok {
		t.Errorf("Expected evicted fingerprint to be dropped")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 tracked fingerprint but got %v instead", s.Len())
	}
}
