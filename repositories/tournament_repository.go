package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/store"
)

var ErrTournamentNotFound = fmt.Errorf("%w: tournament", models.ErrNotFound)

type ListTournamentsFilter struct {
	Phase *models.Phase
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	// Update is guarded by tournament.Version, see MatchRepository.Update.
	Update(ctx context.Context, tournament *models.Tournament) error
	// UpdatePhase writes only the stored phase projection, last write wins.
	UpdatePhase(ctx context.Context, id string, phase models.Phase) error
	Subscribe(id string, onChange func(*models.Tournament)) store.Unsubscribe
}

type documentTournamentRepository struct {
	store store.DocumentStore
	now   func() time.Time
}

func NewTournamentRepository(s store.DocumentStore) TournamentRepository {
	return &documentTournamentRepository{store: s, now: time.Now}
}

func (r *documentTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	fields, err := encodeTournament(t)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, tournamentsCollection, t.ID, fields, 0)
	if err != nil {
		return fmt.Errorf("failed to create tournament %s: %w", t.ID, err)
	}
	t.Version = rec.Version
	return nil
}

func (r *documentTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	rec, err := r.store.Get(ctx, tournamentsCollection, id)
	if err != nil {
		return nil, notFound(err, ErrTournamentNotFound)
	}
	return decodeTournament(rec)
}

func (r *documentTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	var filters []store.Filter
	if filter.Phase != nil {
		filters = append(filters, store.Where("phase", store.OpEq, string(*filter.Phase)))
	}
	recs, err := r.store.Query(ctx, tournamentsCollection, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	tournaments := make([]*models.Tournament, 0, len(recs))
	for _, rec := range recs {
		t, err := decodeTournament(rec)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	sort.SliceStable(tournaments, func(i, j int) bool {
		return tournaments[i].StartDate.After(tournaments[j].StartDate)
	})
	return tournaments, nil
}

func (r *documentTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	fields, err := encodeTournament(t)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, tournamentsCollection, t.ID, fields, t.Version)
	if err != nil {
		return fmt.Errorf("failed to update tournament %s: %w", t.ID, err)
	}
	t.Version = rec.Version
	return nil
}

func (r *documentTournamentRepository) UpdatePhase(ctx context.Context, id string, phase models.Phase) error {
	if _, err := r.store.Get(ctx, tournamentsCollection, id); err != nil {
		return notFound(err, ErrTournamentNotFound)
	}
	if _, err := r.store.Put(ctx, tournamentsCollection, id, map[string]any{"phase": string(phase)}); err != nil {
		return fmt.Errorf("failed to update phase of tournament %s: %w", id, err)
	}
	return nil
}

func (r *documentTournamentRepository) Subscribe(id string, onChange func(*models.Tournament)) store.Unsubscribe {
	return r.store.Subscribe(tournamentsCollection, id, func(rec *store.Record) {
		if rec == nil {
			onChange(nil)
			return
		}
		t, err := decodeTournament(rec)
		if err != nil {
			return
		}
		onChange(t)
	})
}

func encodeTournament(t *models.Tournament) (map[string]any, error) {
	fields, err := toFields(t, "completed_at", "knockout_round", "bye_team_ids")
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}

func decodeTournament(rec *store.Record) (*models.Tournament, error) {
	t := &models.Tournament{}
	if err := fromFields(rec, t); err != nil {
		return nil, err
	}
	t.ID = rec.ID
	t.Version = rec.Version
	return t, nil
}
