// Package store is the Document Store the services persist through: keyed
// records grouped into collections, atomic partial updates, equality and
// range queries, and subscriptions that push every new value of a record.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
)

var (
	ErrNotFound        = fmt.Errorf("%w: document", models.ErrNotFound)
	ErrVersionConflict = errors.New("document was modified concurrently")
	ErrInvalidFilter   = errors.New("invalid query filter")
)

// Record is one document. Fields hold JSON-compatible values only.
type Record struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = copyFields(r.Fields)
	return &c
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Record, error)
	// Put merges fields into the record, creating it when absent. A nil value
	// removes the key. Last write wins.
	Put(ctx context.Context, collection, id string, fields map[string]any) (*Record, error)
	// PutIfVersion is Put guarded by the stored version. expected 0 means the
	// record must not exist yet. A mismatch returns ErrVersionConflict.
	PutIfVersion(ctx context.Context, collection, id string, fields map[string]any, expected int64) (*Record, error)
	Delete(ctx context.Context, collection, id string) error
	// DeleteIfVersion removes the record only while it is at the expected
	// version. A missing record or a mismatch returns ErrVersionConflict.
	DeleteIfVersion(ctx context.Context, collection, id string, expected int64) error
	// Query returns the records matching every filter, ordered by id.
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Record, error)
	// Subscribe delivers the current record, if any, and then every later
	// value. A deleted record is delivered as nil.
	Subscribe(collection, id string, onChange func(*Record)) Unsubscribe
	Close() error
}

func mergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = copyValue(v)
	}
	return dst
}

// splitFields separates the values to store from the keys to remove.
func splitFields(fields map[string]any) (map[string]any, []string) {
	set := make(map[string]any, len(fields))
	removed := make([]string, 0)
	for k, v := range fields {
		if v == nil {
			removed = append(removed, k)
			continue
		}
		set[k] = v
	}
	sort.Strings(removed)
	return set, removed
}

func copyFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyFields(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = copyValue(val[i])
		}
		return out
	default:
		return val
	}
}
