package brackets

import (
	"sort"

	"github.com/Dosada05/volleyball-tournament/models"
)

type RoundRobinGenerator struct {
	legs int
}

// NewRoundRobinGenerator returns a generator where every pair of teams meets
// legs times. legs is 1 for a single and 2 for a double round-robin.
func NewRoundRobinGenerator(legs int) FixtureGenerator {
	if legs != 2 {
		legs = 1
	}
	return &RoundRobinGenerator{legs: legs}
}

func (g *RoundRobinGenerator) GetName() string {
	if g.legs == 2 {
		return "DoubleRoundRobin"
	}
	return "RoundRobin"
}

// GenerateFixtures pairs every team i with every later team j in team order.
// The second leg of a double round-robin swaps sides and is ordered after all
// first-leg matches.
func (g *RoundRobinGenerator) GenerateFixtures(params GenerateFixturesParams) ([]*models.Match, error) {
	opts, err := validateParams(params)
	if err != nil {
		return nil, err
	}

	teams := params.Teams
	n := len(teams)
	pairs := n * (n - 1) / 2
	matches := make([]*models.Match, 0, pairs*g.legs)
	order := 0

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			order++

			first := newFixture(params, opts, teams[i], teams[j])
			first.Round = 1
			first.Leg = 1
			first.Order = order
			matches = append(matches, first)

			if g.legs == 2 {
				second := newFixture(params, opts, teams[j], teams[i])
				second.Round = 1
				second.Leg = 2
				second.Order = order + pairs
				matches = append(matches, second)
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Order < matches[j].Order
	})

	return matches, nil
}
