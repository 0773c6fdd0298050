package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps every collection in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Record
	notifier    *notifier
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Record),
		notifier:    newNotifier(),
		now:         time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, fields map[string]any) (*Record, error) {
	return s.write(collection, id, fields, -1)
}

func (s *MemoryStore) PutIfVersion(ctx context.Context, collection, id string, fields map[string]any, expected int64) (*Record, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: negative expected version", ErrVersionConflict)
	}
	return s.write(collection, id, fields, expected)
}

// write merges fields; expected < 0 disables the version check.
func (s *MemoryStore) write(collection, id string, fields map[string]any, expected int64) (*Record, error) {
	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*Record)
		s.collections[collection] = docs
	}
	rec, exists := docs[id]
	if expected >= 0 {
		var current int64
		if exists {
			current = rec.Version
		}
		if current != expected {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s/%s at version %d, expected %d", ErrVersionConflict, collection, id, current, expected)
		}
	}
	if !exists {
		rec = &Record{ID: id}
		docs[id] = rec
	}
	rec.Fields = mergeFields(rec.Fields, fields)
	rec.Version++
	rec.UpdatedAt = s.now()
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.notifier.publish(collection, id, snapshot)
	return snapshot.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.remove(collection, id, -1)
}

func (s *MemoryStore) DeleteIfVersion(ctx context.Context, collection, id string, expected int64) error {
	if expected <= 0 {
		return fmt.Errorf("%w: %s/%s expected version %d", ErrVersionConflict, collection, id, expected)
	}
	return s.remove(collection, id, expected)
}

// remove deletes a record; expected < 0 disables the version check.
func (s *MemoryStore) remove(collection, id string, expected int64) error {
	s.mu.Lock()
	rec, exists := s.collections[collection][id]
	if expected >= 0 && (!exists || rec.Version != expected) {
		var current int64
		if exists {
			current = rec.Version
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s at version %d, expected %d", ErrVersionConflict, collection, id, current, expected)
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if exists {
		s.notifier.publish(collection, id, nil)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]*Record, 0)
	for _, rec := range s.collections[collection] {
		if matchAll(rec.Fields, filters) {
			result = append(result, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) Subscribe(collection, id string, onChange func(*Record)) Unsubscribe {
	sub, unsubscribe := s.notifier.add(collection, id, onChange)
	if rec, err := s.Get(context.Background(), collection, id); err == nil {
		sub.deliver(rec)
	}
	return unsubscribe
}

func (s *MemoryStore) Close() error {
	return nil
}
