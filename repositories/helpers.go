package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dosada05/volleyball-tournament/store"
)

const (
	teamsCollection       = "teams"
	playersCollection     = "players"
	tournamentsCollection = "tournaments"
	matchesCollection     = "matches"
	teamStatsCollection   = "team_stats"
)

func newID() string {
	return uuid.NewString()
}

// toFields encodes a model into document fields. Keys listed in drop that
// the encoding omitted are sent as nil so the store drops stale values.
func toFields(v any, drop ...string) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	for _, key := range drop {
		if _, ok := fields[key]; !ok {
			fields[key] = nil
		}
	}
	return fields, nil
}

func fromFields(rec *store.Record, dst any) error {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to decode document %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", rec.ID, err)
	}
	return nil
}

// notFound rewraps a store miss with the repository's own sentinel.
func notFound(err error, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}
