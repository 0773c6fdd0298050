package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/volleyball-tournament/models"
)

var ErrDuplicateTeam = errors.New("team appears more than once")

type GenerateFixturesParams struct {
	TournamentID string
	Teams        []*models.Team
	Options      models.MatchOptions
	// Round is the knockout round being generated. Zero means the first round.
	Round int
}

// FixtureGenerator produces upcoming matches for a tournament format.
// Generators are pure: they never read or write storage, and matches are
// returned without ids so the caller decides how they are persisted.
type FixtureGenerator interface {
	GenerateFixtures(params GenerateFixturesParams) ([]*models.Match, error)

	GetName() string
}

// NewGenerator returns the generator for a tournament format.
func NewGenerator(format models.TournamentFormat) (FixtureGenerator, error) {
	switch format {
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(1), nil
	case models.FormatDoubleRoundRobin:
		return NewRoundRobinGenerator(2), nil
	case models.FormatKnockout:
		return NewKnockoutGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidTournamentFormat, format)
	}
}

// Generate builds the fixtures for teams in the given format.
func Generate(tournamentID string, teams []*models.Team, format models.TournamentFormat, opts models.MatchOptions) ([]*models.Match, error) {
	g, err := NewGenerator(format)
	if err != nil {
		return nil, err
	}
	return g.GenerateFixtures(GenerateFixturesParams{
		TournamentID: tournamentID,
		Teams:        teams,
		Options:      opts,
	})
}

func validateParams(params GenerateFixturesParams) (models.MatchOptions, error) {
	if len(params.Teams) < 2 {
		return models.MatchOptions{}, fmt.Errorf("%w: found %d", models.ErrNotEnoughTeams, len(params.Teams))
	}
	seen := make(map[string]struct{}, len(params.Teams))
	for i, t := range params.Teams {
		if t == nil || t.ID == "" {
			return models.MatchOptions{}, fmt.Errorf("team at position %d has no id", i)
		}
		if _, ok := seen[t.ID]; ok {
			return models.MatchOptions{}, fmt.Errorf("%w: %s", ErrDuplicateTeam, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	opts := params.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return models.MatchOptions{}, err
	}
	return opts, nil
}

func newFixture(params GenerateFixturesParams, opts models.MatchOptions, a, b *models.Team) *models.Match {
	tournamentID := params.TournamentID
	return &models.Match{
		TournamentID: &tournamentID,
		TeamAID:      a.ID,
		TeamBID:      b.ID,
		TeamAName:    a.Name,
		TeamBName:    b.Name,
		TotalSets:    opts.TotalSets,
		PointsPerSet: opts.PointsPerSet,
		Sets:         []models.SetScore{},
		Status:       models.MatchStatusUpcoming,
	}
}
