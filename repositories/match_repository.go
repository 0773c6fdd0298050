package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/store"
)

var ErrMatchNotFound = fmt.Errorf("%w: match", models.ErrNotFound)

type MatchRepository interface {
	// Create stores a new match, assigning an id when it has none.
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	// Update writes the match if it is still at match.Version and advances
	// the version on success. Otherwise it returns store.ErrVersionConflict.
	Update(ctx context.Context, match *models.Match) error
	Delete(ctx context.Context, id string) error
	// DeleteIfVersion removes the match only while it is still at version.
	// Otherwise it returns store.ErrVersionConflict.
	DeleteIfVersion(ctx context.Context, id string, version int64) error
	// List returns every match, newest first, optionally only those with the
	// given status.
	List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error)
	// ListByTournament returns the matches of a tournament in fixture order,
	// optionally only those with the given status.
	ListByTournament(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]*models.Match, error)
	Subscribe(id string, onChange func(*models.Match)) store.Unsubscribe
}

type documentMatchRepository struct {
	store store.DocumentStore
	now   func() time.Time
}

func NewMatchRepository(s store.DocumentStore) MatchRepository {
	return &documentMatchRepository{store: s, now: time.Now}
}

func (r *documentMatchRepository) Create(ctx context.Context, match *models.Match) error {
	if match.ID == "" {
		match.ID = newID()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = r.now().UTC()
	}
	fields, err := encodeMatch(match)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, matchesCollection, match.ID, fields, 0)
	if err != nil {
		return fmt.Errorf("failed to create match %s: %w", match.ID, err)
	}
	match.Version = rec.Version
	return nil
}

func (r *documentMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	rec, err := r.store.Get(ctx, matchesCollection, id)
	if err != nil {
		return nil, notFound(err, ErrMatchNotFound)
	}
	return decodeMatch(rec)
}

func (r *documentMatchRepository) Update(ctx context.Context, match *models.Match) error {
	fields, err := encodeMatch(match)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, matchesCollection, match.ID, fields, match.Version)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", match.ID, err)
	}
	match.Version = rec.Version
	return nil
}

func (r *documentMatchRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, matchesCollection, id)
}

func (r *documentMatchRepository) DeleteIfVersion(ctx context.Context, id string, version int64) error {
	if err := r.store.DeleteIfVersion(ctx, matchesCollection, id, version); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", id, err)
	}
	return nil
}

// List filters after decoding so legacy status names are matched too.
func (r *documentMatchRepository) List(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error) {
	recs, err := r.store.Query(ctx, matchesCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	matches := make([]*models.Match, 0, len(recs))
	for _, rec := range recs {
		m, err := decodeMatch(rec)
		if err != nil {
			return nil, err
		}
		if status != nil && m.Status != *status {
			continue
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (r *documentMatchRepository) ListByTournament(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]*models.Match, error) {
	filters := []store.Filter{store.Where("tournament_id", store.OpEq, tournamentID)}
	if status != nil {
		filters = append(filters, store.Where("status", store.OpEq, string(*status)))
	}
	recs, err := r.store.Query(ctx, matchesCollection, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %s: %w", tournamentID, err)
	}
	legacy, err := r.store.Query(ctx, matchesCollection, store.Where("tournamentId", store.OpEq, tournamentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %s: %w", tournamentID, err)
	}

	seen := make(map[string]bool, len(recs))
	matches := make([]*models.Match, 0, len(recs))
	for _, rec := range append(recs, legacy...) {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		m, err := decodeMatch(rec)
		if err != nil {
			return nil, err
		}
		if status != nil && m.Status != *status {
			continue
		}
		matches = append(matches, m)
	}
	sortFixtures(matches)
	return matches, nil
}

func sortFixtures(matches []*models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Subscribe delivers decoded matches; a deleted match is delivered as nil.
func (r *documentMatchRepository) Subscribe(id string, onChange func(*models.Match)) store.Unsubscribe {
	return r.store.Subscribe(matchesCollection, id, func(rec *store.Record) {
		if rec == nil {
			onChange(nil)
			return
		}
		m, err := decodeMatch(rec)
		if err != nil {
			return
		}
		onChange(m)
	})
}
