package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volleyball-tournament/models"
)

func documentStores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "nested", "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]DocumentStore{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

type recorder struct {
	mu      sync.Mutex
	records []*Record
}

func (r *recorder) onChange(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) all() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Record(nil), r.records...)
}

func TestGetMissing(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "matches", "nope")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestPutMergesFields(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := s.Put(ctx, "matches", "m1", map[string]any{"status": "upcoming", "total_sets": float64(3)})
			require.NoError(t, err)
			assert.Equal(t, int64(1), rec.Version)

			rec, err = s.Put(ctx, "matches", "m1", map[string]any{"status": "live"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), rec.Version)

			got, err := s.Get(ctx, "matches", "m1")
			require.NoError(t, err)
			assert.Equal(t, "m1", got.ID)
			assert.Equal(t, "live", got.Fields["status"])
			assert.Equal(t, float64(3), got.Fields["total_sets"])
		})
	}
}

func TestPutNilRemovesKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "matches", "m1", map[string]any{"status": "live", "setScores": []any{}})
			require.NoError(t, err)
			_, err = s.PutIfVersion(ctx, "matches", "m1", map[string]any{"setScores": nil, "missing": nil}, 1)
			require.NoError(t, err)

			got, err := s.Get(ctx, "matches", "m1")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"status": "live"}, got.Fields)
		})
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			fields := map[string]any{"sets": []any{map[string]any{"score_a": float64(1)}}}
			_, err := s.Put(ctx, "matches", "m1", fields)
			require.NoError(t, err)
			fields["sets"].([]any)[0].(map[string]any)["score_a"] = float64(9)

			got, err := s.Get(ctx, "matches", "m1")
			require.NoError(t, err)
			got.Fields["sets"].([]any)[0].(map[string]any)["score_a"] = float64(7)

			again, err := s.Get(ctx, "matches", "m1")
			require.NoError(t, err)
			assert.Equal(t, float64(1), again.Fields["sets"].([]any)[0].(map[string]any)["score_a"])
		})
	}
}

func TestPutIfVersion(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := s.PutIfVersion(ctx, "matches", "m1", map[string]any{"status": "upcoming"}, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), rec.Version)

			_, err = s.PutIfVersion(ctx, "matches", "m1", map[string]any{"status": "live"}, 0)
			assert.ErrorIs(t, err, ErrVersionConflict)

			rec, err = s.PutIfVersion(ctx, "matches", "m1", map[string]any{"status": "live"}, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), rec.Version)

			_, err = s.PutIfVersion(ctx, "matches", "m1", map[string]any{"status": "finished"}, 1)
			assert.ErrorIs(t, err, ErrVersionConflict)

			got, err := s.Get(ctx, "matches", "m1")
			require.NoError(t, err)
			assert.Equal(t, "live", got.Fields["status"])
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "teams", "t1", map[string]any{"name": "Spikers"})
			require.NoError(t, err)
			require.NoError(t, s.Delete(ctx, "teams", "t1"))
			require.NoError(t, s.Delete(ctx, "teams", "t1"))

			_, err = s.Get(ctx, "teams", "t1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDeleteIfVersion(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "matches", "m1", map[string]any{"status": "live"})
			require.NoError(t, err)
			_, err = s.Put(ctx, "matches", "m1", map[string]any{"status": "finished"})
			require.NoError(t, err)

			assert.ErrorIs(t, s.DeleteIfVersion(ctx, "matches", "m1", 1), ErrVersionConflict)
			_, err = s.Get(ctx, "matches", "m1")
			require.NoError(t, err, "a stale delete must leave the record")

			require.NoError(t, s.DeleteIfVersion(ctx, "matches", "m1", 2))
			_, err = s.Get(ctx, "matches", "m1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, s.DeleteIfVersion(ctx, "matches", "m1", 2), ErrVersionConflict)
			assert.ErrorIs(t, s.DeleteIfVersion(ctx, "matches", "missing", 0), ErrVersionConflict)
		})
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			docs := map[string]map[string]any{
				"c": {"tournament_id": "t1", "status": "finished", "round": float64(2)},
				"a": {"tournament_id": "t1", "status": "upcoming", "round": float64(1)},
				"b": {"tournament_id": "t2", "status": "upcoming", "round": float64(1)},
				"d": {"tournament_id": "t1", "status": "live", "round": float64(3), "applied": true},
			}
			for id, f := range docs {
				_, err := s.Put(ctx, "matches", id, f)
				require.NoError(t, err)
			}

			ids := func(recs []*Record) []string {
				out := make([]string, 0, len(recs))
				for _, r := range recs {
					out = append(out, r.ID)
				}
				return out
			}

			got, err := s.Query(ctx, "matches", Where("tournament_id", OpEq, "t1"))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c", "d"}, ids(got))

			got, err = s.Query(ctx, "matches", Where("tournament_id", OpEq, "t1"), Where("round", OpGte, 2))
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "d"}, ids(got))

			got, err = s.Query(ctx, "matches", Where("status", OpEq, models.MatchStatusUpcoming))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(got))

			got, err = s.Query(ctx, "matches", Where("round", OpLt, 2))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(got))

			got, err = s.Query(ctx, "matches", Where("applied", OpEq, true))
			require.NoError(t, err)
			assert.Equal(t, []string{"d"}, ids(got))

			got, err = s.Query(ctx, "matches")
			require.NoError(t, err)
			assert.Len(t, got, 4)

			got, err = s.Query(ctx, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = s.Query(ctx, "matches", Where("status; drop", OpEq, "x"))
			assert.ErrorIs(t, err, ErrInvalidFilter)
			_, err = s.Query(ctx, "matches", Where("status", Op("!="), "x"))
			assert.ErrorIs(t, err, ErrInvalidFilter)
			_, err = s.Query(ctx, "matches", Where("applied", OpGt, true))
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "matches", "m1", map[string]any{"status": "upcoming"})
			require.NoError(t, err)

			var r recorder
			unsubscribe := s.Subscribe("matches", "m1", r.onChange)

			_, err = s.Put(ctx, "matches", "m1", map[string]any{"status": "live"})
			require.NoError(t, err)
			_, err = s.Put(ctx, "matches", "other", map[string]any{"status": "live"})
			require.NoError(t, err)
			require.NoError(t, s.Delete(ctx, "matches", "m1"))

			unsubscribe()
			unsubscribe()
			_, err = s.Put(ctx, "matches", "m1", map[string]any{"status": "upcoming"})
			require.NoError(t, err)

			got := r.all()
			require.Len(t, got, 3)
			assert.Equal(t, "upcoming", got[0].Fields["status"])
			assert.Equal(t, "live", got[1].Fields["status"])
			assert.Equal(t, int64(2), got[1].Version)
			assert.Nil(t, got[2])
		})
	}
}

func TestSubscribeBeforeCreate(t *testing.T) {
	for name, s := range documentStores(t) {
		t.Run(name, func(t *testing.T) {
			var r recorder
			defer s.Subscribe("tournaments", "t1", r.onChange)()
			assert.Empty(t, r.all())

			_, err := s.Put(context.Background(), "tournaments", "t1", map[string]any{"name": "Beach Cup"})
			require.NoError(t, err)
			require.Len(t, r.all(), 1)
			assert.Equal(t, "Beach Cup", r.all()[0].Fields["name"])
		})
	}
}

func TestBuildQuery(t *testing.T) {
	query, args, err := buildQuery("matches", []Filter{
		Where("tournament_id", OpEq, "t1"),
		Where("round", OpGt, 1),
		Where("status", OpLte, "live"),
	})
	require.NoError(t, err)
	assert.Contains(t, query, "collection = $1")
	assert.Contains(t, query, "fields @> $2::jsonb")
	assert.Contains(t, query, "(fields->>$4::text)::numeric > $5::numeric")
	assert.Contains(t, query, "fields->>$7::text <= $8::text")
	assert.Contains(t, query, "ORDER BY id ASC")
	assert.Equal(t, []interface{}{"matches", `{"tournament_id":"t1"}`, "round", "round", float64(1), "status", "status", "live"}, args)

	_, _, err = buildQuery("matches", []Filter{Where("bad name", OpEq, 1)})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
