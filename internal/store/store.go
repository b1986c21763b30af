package store

import (
	"time"

	"github.com/mousefad/klipper-timeout/internal/fingerprint"
)

// Store maps content fingerprints to the time they were first seen in the
// manager's history. State is process-lifetime only: after a restart the
// first reconciliation re-observes everything still present.
//
// The store is owned by the daemon goroutine and is not safe for concurrent
// use.
type Store struct {
	firstSeen map[fingerprint.Fingerprint]time.Time
}

func New() *Store {
	return &Store{firstSeen: make(map[fingerprint.Fingerprint]time.Time)}
}

// Observe records now as the first-seen time for fp, unless fp is already
// tracked: a recorded timestamp never regresses while the entry remains
// present. It reports whether fp was new.
func (s *Store) Observe(fp fingerprint.Fingerprint, now time.Time) bool {
	if _, ok := s.firstSeen[fp]; ok {
		return false
	}

	s.firstSeen[fp] = now
	return true
}

// AgeOf returns how long fp has been tracked.
func (s *Store) AgeOf(fp fingerprint.Fingerprint, now time.Time) (time.Duration, bool) {
	seen, ok := s.firstSeen[fp]
	if !ok {
		return 0, false
	}

	return now.Sub(seen), true
}

// Drop forgets fp. Dropping an untracked fingerprint is a no-op.
func (s *Store) Drop(fp fingerprint.Fingerprint) {
	delete(s.firstSeen, fp)
}

// Reconcile drops bookkeeping for fingerprints no longer present in live
// history. Entries the manager evicted on its own need no removal call, so
// this touches only the store. It returns the number of records dropped.
func (s *Store) Reconcile(live map[fingerprint.Fingerprint]struct{}) int {
	var dropped int
	for fp := range s.firstSeen {
		if _, ok := live[fp]; !ok {
			delete(s.firstSeen, fp)
			dropped++
		}
	}

	return dropped
}

func (s *Store) Len() int {
	return len(s.firstSeen)
}
