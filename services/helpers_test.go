package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
	"github.com/Dosada05/volleyball-tournament/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store       *store.MemoryStore
	teams       repositories.TeamRepository
	players     repositories.PlayerRepository
	tournaments repositories.TournamentRepository
	matches     repositories.MatchRepository
	stats       repositories.TeamStatRepository

	matchSvc      *matchService
	tournamentSvc *tournamentService
	teamSvc       TeamService
	archiver      *recordingArchiver
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, s store.DocumentStore) *fixture {
	t.Helper()
	f := &fixture{
		teams:       repositories.NewTeamRepository(s),
		players:     repositories.NewPlayerRepository(s),
		tournaments: repositories.NewTournamentRepository(s),
		matches:     repositories.NewMatchRepository(s),
		stats:       repositories.NewTeamStatRepository(s),
	}
	if mem, ok := s.(*store.MemoryStore); ok {
		f.store = mem
	}
	logger := discardLogger()
	clock := func() time.Time { return testNow }

	f.matchSvc = NewMatchService(f.matches, f.teams, f.tournaments, f.stats, DefaultWriteRetries, logger).(*matchService)
	f.matchSvc.now = clock
	f.tournamentSvc = NewTournamentService(f.tournaments, f.teams, f.matches, f.stats, nil, DefaultWriteRetries, logger).(*tournamentService)
	f.tournamentSvc.now = clock
	f.teamSvc = NewTeamService(f.teams, f.players, f.tournaments, DefaultWriteRetries, logger)
	return f
}

func (f *fixture) withArchiver() *fixture {
	f.archiver = &recordingArchiver{}
	f.tournamentSvc.archiver = f.archiver
	return f
}

func (f *fixture) createTeams(t *testing.T, names ...string) []*models.Team {
	t.Helper()
	teams := make([]*models.Team, 0, len(names))
	for _, name := range names {
		team, err := f.teamSvc.CreateTeam(context.Background(), CreateTeamInput{Name: name})
		require.NoError(t, err)
		teams = append(teams, team)
	}
	return teams
}

func (f *fixture) createTournament(t *testing.T, format models.TournamentFormat, teams []*models.Team) *models.Tournament {
	t.Helper()
	ids := make([]string, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, team.ID)
	}
	tournament, err := f.tournamentSvc.CreateTournament(context.Background(), CreateTournamentInput{
		Name:         "Summer Cup",
		Format:       format,
		StartDate:    testNow.Add(-24 * time.Hour),
		EndDate:      testNow.Add(48 * time.Hour),
		TeamIDs:      ids,
		TotalSets:    1,
		PointsPerSet: 3,
	})
	require.NoError(t, err)
	return tournament
}

// playOut scores a match to the end with the given side taking every point.
func (f *fixture) playOut(t *testing.T, matchID string, side models.TeamSide) *models.Match {
	t.Helper()
	ctx := context.Background()
	m, err := f.matchSvc.StartMatch(ctx, matchID)
	require.NoError(t, err)
	for m.Status == models.MatchStatusLive {
		m, err = f.matchSvc.AddPoint(ctx, matchID, side)
		require.NoError(t, err)
	}
	return m
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived map[string][]*models.Match
}

func (a *recordingArchiver) ArchiveFixtures(ctx context.Context, tournament *models.Tournament, matches []*models.Match) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = make(map[string][]*models.Match)
	}
	a.archived[tournament.ID] = append(a.archived[tournament.ID], matches...)
	return "memory://" + tournament.ID, nil
}

// racingStore performs one extra write to a record right before the first
// guarded write to it, the way a second scorer would.
type racingStore struct {
	store.DocumentStore
	mu    sync.Mutex
	raced map[string]bool
	races int
}

func (s *racingStore) PutIfVersion(ctx context.Context, collection, id string, fields map[string]any, expected int64) (*store.Record, error) {
	s.mu.Lock()
	race := expected > 0 && !s.raced[collection+"/"+id]
	if race {
		s.raced[collection+"/"+id] = true
		s.races++
	}
	s.mu.Unlock()

	if race {
		if _, err := s.DocumentStore.Put(ctx, collection, id, map[string]any{}); err != nil {
			return nil, err
		}
	}
	return s.DocumentStore.PutIfVersion(ctx, collection, id, fields, expected)
}
