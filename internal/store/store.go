// Package store provides the bbolt-backed statistics store adapter.
//
// The sync engine is written against a narrow contract: read the last
// committed state for a series once at run start, append the run's delta
// once at run end. Append is a single write transaction covering both the
// points and the series state, so a run's commit is all-or-nothing.
//
// Buckets:
//
//	stats  — committed points keyed by series key + RFC3339 UTC timestamp
//	state  — last committed state (timestamp + running sum) per series key
//	_meta  — internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/licznik-cli/licznik/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketStats    = []byte("stats")
	bucketState    = []byte("state")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"stats", "state"}

// tsKeyLayout keeps point keys lexicographically ordered by instant.
const tsKeyLayout = "2006-01-02T15:04:05Z"

// SeriesKey builds the canonical key for one (meter, mode, zone) series.
// Format: meter:<ID>|mode:<slug>|zone:<label>
func SeriesKey(meterID string, mode model.Mode, zone string) string {
	return "meter:" + meterID + "|mode:" + mode.Slug() + "|zone:" + zone
}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketStats, bucketState, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Series state ─────────────────────────────────────────────────────────────

// Last returns the committed state of a series.
// Returns (state, true, nil) if the series has any committed points,
// (zero, false, nil) otherwise.
func (s *Store) Last(key string) (model.SeriesState, bool, error) {
	var state model.SeriesState
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketState).Get([]byte(key))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &state); err != nil {
			return fmt.Errorf("decoding state for %s: %w", key, err)
		}
		found = true
		return nil
	})
	return state, found, err
}

// ─── Points ──────────────────────────────────────────────────────────────────

func pointKey(seriesKey string, at time.Time) []byte {
	return []byte(seriesKey + "|ts:" + at.UTC().Format(tsKeyLayout))
}

// Append durably adds the run's new points to a series and advances its
// state to the last of them, all in one write transaction. Re-appending a
// point with an already-stored timestamp overwrites the same key, so a
// replayed run never duplicates entries. A nil/empty slice is a no-op.
func (s *Store) Append(key string, points []model.CommittedPoint) error {
	if len(points) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		stats := tx.Bucket(bucketStats)
		for _, p := range points {
			row, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encoding point: %w", err)
			}
			if err := stats.Put(pointKey(key, p.Start), row); err != nil {
				return err
			}
		}
		last := points[len(points)-1]
		state, err := json.Marshal(model.SeriesState{
			LastTimestamp: last.Start,
			Sum:           last.Sum,
		})
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		return tx.Bucket(bucketState).Put([]byte(key), state)
	})
}

// Points returns all committed points of a series in ascending timestamp
// order (the key layout sorts lexicographically by instant).
func (s *Store) Points(key string) ([]model.CommittedPoint, error) {
	prefix := []byte(key + "|ts:")
	var points []model.CommittedPoint
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketStats).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var p model.CommittedPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decoding point %s: %w", k, err)
			}
			points = append(points, p)
		}
		return nil
	})
	return points, err
}

// SeriesKeys lists every series key present in the state bucket.
func (s *Store) SeriesKeys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	buckets := map[string][]byte{
		"stats": bucketStats,
		"state": bucketState,
	}

	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket(buckets[name])
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
