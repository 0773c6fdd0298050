package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
)

func TestTeamRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.teamSvc.CreateTeam(ctx, CreateTeamInput{Name: " "})
	assert.ErrorIs(t, err, ErrTeamNameRequired)

	teams := f.createTeams(t, "Spikers", "Blockers")
	spikers, blockers := teams[0], teams[1]

	_, err = f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{})
	assert.ErrorIs(t, err, ErrPlayerNameRequired)

	ana, err := f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{Name: "Ana", Position: "setter", TeamID: &spikers.ID})
	require.NoError(t, err)
	require.NotNil(t, ana.TeamID)
	assert.Equal(t, spikers.ID, *ana.TeamID)

	bea, err := f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{Name: "Bea"})
	require.NoError(t, err)
	assert.Nil(t, bea.TeamID)

	team, err := f.teamSvc.AddPlayer(ctx, spikers.ID, bea.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ana.ID, bea.ID}, team.PlayerIDs)

	_, err = f.teamSvc.AddPlayer(ctx, spikers.ID, bea.ID)
	require.NoError(t, err)

	_, err = f.teamSvc.AddPlayer(ctx, blockers.ID, bea.ID)
	assert.ErrorIs(t, err, models.ErrPlayerAlreadyInTeam)

	got, err := f.teamSvc.GetTeam(ctx, spikers.ID)
	require.NoError(t, err)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "Ana", got.Players[0].Name)

	team, err = f.teamSvc.RemovePlayer(ctx, spikers.ID, bea.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ana.ID}, team.PlayerIDs)

	_, err = f.teamSvc.RemovePlayer(ctx, spikers.ID, bea.ID)
	assert.ErrorIs(t, err, ErrPlayerNotInTeam)

	team, err = f.teamSvc.AddPlayer(ctx, blockers.ID, bea.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bea.ID}, team.PlayerIDs)
}

func TestDeleteTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	teams := f.createTeams(t, "Spikers", "Blockers", "Free")
	tournament := f.createTournament(t, models.FormatRoundRobin, teams[:2])

	ana, err := f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{Name: "Ana", TeamID: &teams[2].ID})
	require.NoError(t, err)

	err = f.teamSvc.DeleteTeam(ctx, teams[0].ID)
	assert.ErrorIs(t, err, models.ErrTeamInUse)

	_, err = f.tournamentSvc.CompleteTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.NoError(t, f.teamSvc.DeleteTeam(ctx, teams[0].ID))

	require.NoError(t, f.teamSvc.DeleteTeam(ctx, teams[2].ID))
	player, err := f.players.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Nil(t, player.TeamID)

	_, err = f.teamSvc.GetTeam(ctx, teams[2].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.teamSvc.DeleteTeam(ctx, "missing"), models.ErrNotFound)
}

// gatedPlayers holds the first two player reads until both have happened, so
// two callers work from the same snapshot.
type gatedPlayers struct {
	repositories.PlayerRepository
	reads   atomic.Int32
	arrived sync.WaitGroup
}

func newGatedPlayers(repo repositories.PlayerRepository) *gatedPlayers {
	g := &gatedPlayers{PlayerRepository: repo}
	g.arrived.Add(2)
	return g
}

func (g *gatedPlayers) GetByID(ctx context.Context, id string) (*models.Player, error) {
	p, err := g.PlayerRepository.GetByID(ctx, id)
	if g.reads.Add(1) <= 2 {
		g.arrived.Done()
		g.arrived.Wait()
	}
	return p, err
}

func TestAddPlayerToTwoTeamsAtOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	teams := f.createTeams(t, "Spikers", "Blockers")
	ana, err := f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{Name: "Ana"})
	require.NoError(t, err)

	svc := NewTeamService(f.teams, newGatedPlayers(f.players), f.tournaments, DefaultWriteRetries, discardLogger())
	errs := make([]error, len(teams))
	var wg sync.WaitGroup
	for i, team := range teams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.AddPlayer(ctx, team.ID, ana.ID)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrPlayerAlreadyInTeam)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one add must lose")

	player, err := f.players.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	require.NotNil(t, player.TeamID)
	rosters := 0
	for _, team := range teams {
		got, err := f.teams.GetByID(ctx, team.ID)
		require.NoError(t, err)
		if got.HasPlayer(ana.ID) {
			rosters++
			assert.Equal(t, team.ID, *player.TeamID)
		}
	}
	assert.Equal(t, 1, rosters)
}

func TestConcurrentAddsKeepWholeRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	team := f.createTeams(t, "Spikers")[0]

	var ids []string
	for _, name := range []string{"Ana", "Bea", "Cleo", "Dana"} {
		p, err := f.teamSvc.CreatePlayer(ctx, CreatePlayerInput{Name: name})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.teamSvc.AddPlayer(ctx, team.ID, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got.PlayerIDs)
}

func TestListTeams(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createTeams(t, "Spikers", "Aces")

	teams, err := f.teamSvc.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Aces", teams[0].Name)
}
