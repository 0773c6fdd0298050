package models

import "time"

// Phase is derived from the schedule and the completion flag, see lifecycle.Phase.
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseOngoing   Phase = "ongoing"
	PhaseCompleted Phase = "completed"
)

type Tournament struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Format         TournamentFormat `json:"format"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	TeamIDs        []string         `json:"team_ids"`
	MatchOptions   MatchOptions     `json:"match_options"`
	FixturesLocked bool             `json:"fixtures_locked"`
	Completed      bool             `json:"completed"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	// KnockoutRound is the latest generated knockout round, 0 before fixtures exist.
	KnockoutRound int `json:"knockout_round,omitempty"`
	// ByeTeamIDs are the teams of the latest knockout round that were drawn
	// without a match. Nil when no round recorded them.
	ByeTeamIDs []string  `json:"bye_team_ids"`
	CreatedAt  time.Time `json:"created_at"`

	// Phase is a projection refreshed by the scheduler for store queries.
	// Read paths always recompute it.
	Phase Phase `json:"phase"`

	Version int64 `json:"-"`
}

func (t Tournament) HasTeam(teamID string) bool {
	for _, id := range t.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
