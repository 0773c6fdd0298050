package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/store"
)

var ErrTeamStatNotFound = fmt.Errorf("%w: standing", models.ErrNotFound)

type TeamStatRepository interface {
	Get(ctx context.Context, tournamentID, teamID string) (*models.TeamStat, error)
	// Save writes one row guarded by stat.Version; version 0 creates the row.
	Save(ctx context.Context, stat *models.TeamStat) error
	// Upsert overwrites whole rows, last write wins. A row is keyed by
	// tournament and team.
	Upsert(ctx context.Context, stats []models.TeamStat) error
	ListByTournament(ctx context.Context, tournamentID string) ([]models.TeamStat, error)
	DeleteByTournament(ctx context.Context, tournamentID string) error
}

type documentTeamStatRepository struct {
	store store.DocumentStore
	now   func() time.Time
}

func NewTeamStatRepository(s store.DocumentStore) TeamStatRepository {
	return &documentTeamStatRepository{store: s, now: time.Now}
}

func teamStatID(tournamentID, teamID string) string {
	return tournamentID + ":" + teamID
}

func (r *documentTeamStatRepository) Get(ctx context.Context, tournamentID, teamID string) (*models.TeamStat, error) {
	rec, err := r.store.Get(ctx, teamStatsCollection, teamStatID(tournamentID, teamID))
	if err != nil {
		return nil, notFound(err, ErrTeamStatNotFound)
	}
	return decodeTeamStat(rec)
}

func (r *documentTeamStatRepository) Save(ctx context.Context, stat *models.TeamStat) error {
	stat.UpdatedAt = r.now().UTC()
	fields, err := toFields(stat)
	if err != nil {
		return err
	}
	id := teamStatID(stat.TournamentID, stat.TeamID)
	rec, err := r.store.PutIfVersion(ctx, teamStatsCollection, id, fields, stat.Version)
	if err != nil {
		return fmt.Errorf("failed to save standing %s: %w", id, err)
	}
	stat.Version = rec.Version
	return nil
}

func (r *documentTeamStatRepository) Upsert(ctx context.Context, stats []models.TeamStat) error {
	for _, stat := range stats {
		stat.UpdatedAt = r.now().UTC()
		fields, err := toFields(stat)
		if err != nil {
			return err
		}
		id := teamStatID(stat.TournamentID, stat.TeamID)
		if _, err := r.store.Put(ctx, teamStatsCollection, id, fields); err != nil {
			return fmt.Errorf("failed to save standing %s: %w", id, err)
		}
	}
	return nil
}

// ListByTournament returns rows in store order. Ranking is left to the caller.
func (r *documentTeamStatRepository) ListByTournament(ctx context.Context, tournamentID string) ([]models.TeamStat, error) {
	recs, err := r.store.Query(ctx, teamStatsCollection, store.Where("tournament_id", store.OpEq, tournamentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list standings of tournament %s: %w", tournamentID, err)
	}
	stats := make([]models.TeamStat, 0, len(recs))
	for _, rec := range recs {
		stat, err := decodeTeamStat(rec)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, nil
}

func decodeTeamStat(rec *store.Record) (*models.TeamStat, error) {
	stat := &models.TeamStat{}
	if err := fromFields(rec, stat); err != nil {
		return nil, err
	}
	stat.Version = rec.Version
	return stat, nil
}

func (r *documentTeamStatRepository) DeleteByTournament(ctx context.Context, tournamentID string) error {
	stats, err := r.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	for _, stat := range stats {
		if err := r.store.Delete(ctx, teamStatsCollection, teamStatID(tournamentID, stat.TeamID)); err != nil {
			return fmt.Errorf("failed to delete standing of team %s: %w", stat.TeamID, err)
		}
	}
	return nil
}
