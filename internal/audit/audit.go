package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"

	"github.com/mousefad/klipper-timeout/internal/fingerprint"
)

var bucketName = []byte("Removals")

// Reason records why an entry was removed from history.
type Reason string

const (
	ReasonDenied  Reason = "denied"
	ReasonExpired Reason = "expired"
)

// Record is one removal. Only the fingerprint is stored, never the content:
// journaling a denied secret would defeat the point of removing it.
type Record struct {
	Fingerprint string        `json:"fingerprint"`
	Reason      Reason        `json:"reason"`
	Age         time.Duration `json:"age"`
	RemovedAt   time.Time     `json:"removed_at"`
}

// Journal persists removal records in a BoltDB file, keyed by fingerprint.
type Journal struct {
	db *bolt.DB
}

func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening journal %v: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing journal %v: %w", path, err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores r under fp, keeping earlier removals of the same content.
func (j *Journal) Append(fp fingerprint.Fingerprint, r Record) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		var records []Record
		if bytes := bucket.Get(fp[:]); bytes != nil {
			if err := json.Unmarshal(bytes, &records); err != nil {
				return err
			}
		}

		records = append(records, r)

		marshalled, err := json.Marshal(&records)
		if err != nil {
			return err
		}

		return bucket.Put(fp[:], marshalled)
	})
}

// List returns every stored removal, oldest first.
func (j *Journal) List() ([]Record, error) {
	var out []Record

	if err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("bucket %s doesn't exist", string(bucketName))
		}

		return bucket.ForEach(func(k, v []byte) error {
			var records []Record
			if err := json.Unmarshal(v, &records); err != nil {
				return err
			}

			out = append(out, records...)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RemovedAt.Before(out[j].RemovedAt) })
	return out, nil
}
