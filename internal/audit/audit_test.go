package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mousefad/klipper-timeout/internal/fingerprint"
)

func TestAppendAndList(t *testing.T) {
	journal, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf(err.Error())
	}
	defer func() {
		if err := journal.Close(); err != nil {
			t.Errorf(err.Error())
		}
	}()

	t0 := time.Now().Round(0)
	fpA := fingerprint.Of("a")
	fpB := fingerprint.Of("b")

	records := []struct {
		fp fingerprint.Fingerprint
		r  Record
	}{
		{fpB, Record{Fingerprint: fpB.Hex(), Reason: ReasonExpired, Age: 700 * time.Second, RemovedAt: t0.Add(time.Minute)}},
		{fpA, Record{Fingerprint: fpA.Hex(), Reason: ReasonDenied, RemovedAt: t0}},
		// the same content removed again later
		{fpA, Record{Fingerprint: fpA.Hex(), Reason: ReasonDenied, RemovedAt: t0.Add(2 * time.Minute)}},
	}
	for _, rec := range records {
		if err := journal.Append(rec.fp, rec.r); err != nil {
			t.Fatalf(err.Error())
		}
	}

	stored, err := journal.List()
	if err != nil {
		t.Fatalf(err.Error())
	}

	if len(stored) != 3 {
		t.Fatalf("Expected 3 records but got %v instead", len(stored))
	}

	// oldest first, regardless of insertion order
	if !stored[0].RemovedAt.Equal(t0) || stored[0].Reason != ReasonDenied {
		t.Errorf("Expected the denied record first but got %+v", stored[0])
	}
	if stored[1].Reason != ReasonExpired || stored[1].Age != 700*time.Second {
		t.Errorf("Expected the expired record second but got %+v", stored[1])
	}
	if stored[2].Fingerprint != fpA.Hex() {
		t.Errorf("Expected the repeat removal last but got %+v", stored[2])
	}
}

func TestOpenCreatesBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	journal, err := Open(path)
	if err != nil {
		t.Fatalf(err.Error())
	}

	// an empty journal lists cleanly
	records, err := journal.List()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if len(records) != 0 {
		t.Errorf("Expected no records but got %v instead", len(records))
	}

	if err := journal.Close(); err != nil {
		t.Fatalf(err.Error())
	}

	// reopening an existing file works
	journal, err = Open(path)
	if err != nil {
		t.Fatalf(err.Error())
	}
	if err := journal.Close(); err != nil {
		t.Errorf(err.Error())
	}
}
