package models

import "fmt"

// TournamentFormat selects the fixture generation algorithm.
type TournamentFormat string

const (
	FormatRoundRobin       TournamentFormat = "round-robin"
	FormatDoubleRoundRobin TournamentFormat = "double-round-robin"
	FormatKnockout         TournamentFormat = "knockout"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatRoundRobin, FormatDoubleRoundRobin, FormatKnockout:
		return true
	}
	return false
}

const (
	DefaultTotalSets    = 3
	DefaultPointsPerSet = 25
)

// MatchOptions holds the per-match format parameters applied to generated fixtures.
// Zero values fall back to the defaults.
type MatchOptions struct {
	TotalSets    int `json:"total_sets,omitempty"`
	PointsPerSet int `json:"points_per_set,omitempty"`
}

func (o MatchOptions) WithDefaults() MatchOptions {
	if o.TotalSets == 0 {
		o.TotalSets = DefaultTotalSets
	}
	if o.PointsPerSet == 0 {
		o.PointsPerSet = DefaultPointsPerSet
	}
	return o
}

// Validate checks that totalSets is an odd positive number and pointsPerSet is positive.
func (o MatchOptions) Validate() error {
	if o.TotalSets <= 0 || o.TotalSets%2 == 0 {
		return fmt.Errorf("%w: total sets must be an odd positive number, got %d", ErrInvalidMatchFormat, o.TotalSets)
	}
	if o.PointsPerSet <= 0 {
		return fmt.Errorf("%w: points per set must be positive, got %d", ErrInvalidMatchFormat, o.PointsPerSet)
	}
	return nil
}
