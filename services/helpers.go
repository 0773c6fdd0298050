package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
	"github.com/Dosada05/volleyball-tournament/store"
)

const DefaultWriteRetries = 5

// retryOnConflict runs a read-modify-write attempt until it stops failing with
// a version conflict. It gives up after retries extra attempts.
func retryOnConflict(ctx context.Context, logger *slog.Logger, retries int, kind, id string, attempt func() error) error {
	for n := 0; ; n++ {
		err := attempt()
		if err == nil || !errors.Is(err, store.ErrVersionConflict) {
			return err
		}
		if n >= retries {
			return fmt.Errorf("%w: %s %s: %w", ErrWriteConflict, kind, id, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.DebugContext(ctx, "Write conflict, retrying",
			slog.String("kind", kind), slog.String("id", id), slog.Int("attempt", n+1))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// loadTeams resolves team ids in order. A missing team fails the whole call.
func loadTeams(ctx context.Context, repo repositories.TeamRepository, ids []string) ([]*models.Team, error) {
	teams := make([]*models.Team, 0, len(ids))
	for _, id := range ids {
		team, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load team %s: %w", id, err)
		}
		teams = append(teams, team)
	}
	return teams, nil
}

func teamNames(teams []*models.Team) map[string]string {
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	return names
}
