package brackets

import (
	"fmt"
	"math/rand/v2"

	"github.com/Dosada05/volleyball-tournament/models"
)

type KnockoutGenerator struct {
	shuffle bool
	rng     *rand.Rand
}

type KnockoutOption func(*KnockoutGenerator)

// WithRand makes the shuffle reproducible.
func WithRand(rng *rand.Rand) KnockoutOption {
	return func(g *KnockoutGenerator) { g.rng = rng }
}

// WithSeedOrder keeps the given team order. Used for later rounds so winners
// meet in bracket order.
func WithSeedOrder() KnockoutOption {
	return func(g *KnockoutGenerator) { g.shuffle = false }
}

func NewKnockoutGenerator(opts ...KnockoutOption) FixtureGenerator {
	g := &KnockoutGenerator{shuffle: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *KnockoutGenerator) GetName() string {
	return "Knockout"
}

// GenerateFixtures pairs consecutive teams (0,1), (2,3), ... after an optional
// shuffle. An odd team out gets no match. Only one round is produced; the next
// round is an explicit call with the winners.
func (g *KnockoutGenerator) GenerateFixtures(params GenerateFixturesParams) ([]*models.Match, error) {
	opts, err := validateParams(params)
	if err != nil {
		return nil, err
	}

	teams := make([]*models.Team, len(params.Teams))
	copy(teams, params.Teams)
	if g.shuffle {
		swap := func(i, j int) { teams[i], teams[j] = teams[j], teams[i] }
		if g.rng != nil {
			g.rng.Shuffle(len(teams), swap)
		} else {
			rand.Shuffle(len(teams), swap)
		}
	}

	round := params.Round
	if round <= 0 {
		round = 1
	}
	count := len(teams) / 2
	label := RoundLabel(count)

	matches := make([]*models.Match, 0, count)
	for i := 0; i+1 < len(teams); i += 2 {
		m := newFixture(params, opts, teams[i], teams[i+1])
		m.Round = round
		m.RoundLabel = label
		m.Order = i/2 + 1
		matches = append(matches, m)
	}
	return matches, nil
}

// ByeTeam returns the team left without a match when the count is odd.
// It is only meaningful for generators that keep seed order.
func ByeTeam(teams []*models.Team) *models.Team {
	if len(teams)%2 == 0 {
		return nil
	}
	return teams[len(teams)-1]
}

// RoundLabel names a knockout round by the number of matches in it.
func RoundLabel(matches int) string {
	switch matches {
	case 1:
		return "Final"
	case 2:
		return "Semi Final"
	case 4:
		return "Quarter Final"
	default:
		return fmt.Sprintf("Round of %d", matches*2)
	}
}
