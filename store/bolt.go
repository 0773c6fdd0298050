package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore persists each collection as a BoltDB bucket of JSON-encoded records.
type BoltStore struct {
	db       *bbolt.DB
	notifier *notifier
	now      func() time.Time
}

func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	return &BoltStore{db: db, notifier: newNotifier(), now: time.Now}, nil
}

func (s *BoltStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = readRecord(tx.Bucket([]byte(collection)), id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", err, collection, id)
	}
	return rec, nil
}

func (s *BoltStore) Put(ctx context.Context, collection, id string, fields map[string]any) (*Record, error) {
	return s.write(collection, id, fields, -1)
}

func (s *BoltStore) PutIfVersion(ctx context.Context, collection, id string, fields map[string]any, expected int64) (*Record, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: negative expected version", ErrVersionConflict)
	}
	return s.write(collection, id, fields, expected)
}

func (s *BoltStore) write(collection, id string, fields map[string]any, expected int64) (*Record, error) {
	var saved *Record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", collection, err)
		}

		rec, err := readRecord(bucket, id)
		switch {
		case errors.Is(err, ErrNotFound):
			rec = &Record{ID: id}
		case err != nil:
			return err
		}

		if expected >= 0 && rec.Version != expected {
			return fmt.Errorf("%w: %s/%s at version %d, expected %d", ErrVersionConflict, collection, id, rec.Version, expected)
		}

		rec.Fields = mergeFields(rec.Fields, fields)
		rec.Version++
		rec.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s/%s: %w", collection, id, err)
		}
		saved = rec
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.publish(collection, id, saved)
	return saved.Clone(), nil
}

func (s *BoltStore) Delete(ctx context.Context, collection, id string) error {
	return s.remove(collection, id, -1)
}

func (s *BoltStore) DeleteIfVersion(ctx context.Context, collection, id string, expected int64) error {
	if expected <= 0 {
		return fmt.Errorf("%w: %s/%s expected version %d", ErrVersionConflict, collection, id, expected)
	}
	return s.remove(collection, id, expected)
}

// remove deletes a record; expected < 0 disables the version check.
func (s *BoltStore) remove(collection, id string, expected int64) error {
	existed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if expected >= 0 {
			rec, err := readRecord(bucket, id)
			switch {
			case errors.Is(err, ErrNotFound):
				return fmt.Errorf("%w: %s/%s is gone, expected version %d", ErrVersionConflict, collection, id, expected)
			case err != nil:
				return err
			case rec.Version != expected:
				return fmt.Errorf("%w: %s/%s at version %d, expected %d", ErrVersionConflict, collection, id, rec.Version, expected)
			}
		}
		if bucket == nil {
			return nil
		}
		existed = bucket.Get([]byte(id)) != nil
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if existed {
		s.notifier.publish(collection, id, nil)
	}
	return nil
}

func (s *BoltStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	result := make([]*Record, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode record %s/%s: %w", collection, string(k), err)
			}
			if matchAll(rec.Fields, filters) {
				result = append(result, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Bolt keys are already sorted; keep the contract explicit.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *BoltStore) Subscribe(collection, id string, onChange func(*Record)) Unsubscribe {
	sub, unsubscribe := s.notifier.add(collection, id, onChange)
	if rec, err := s.Get(context.Background(), collection, id); err == nil {
		sub.deliver(rec)
	}
	return unsubscribe
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func readRecord(bucket *bbolt.Bucket, id string) (*Record, error) {
	if bucket == nil {
		return nil, ErrNotFound
	}
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &rec, nil
}
