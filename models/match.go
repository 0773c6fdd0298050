package models

import "time"

type MatchStatus string

const (
	MatchStatusUpcoming MatchStatus = "upcoming"
	MatchStatusLive     MatchStatus = "live"
	MatchStatusFinished MatchStatus = "finished"
)

// TeamSide identifies one of the two teams of a match.
type TeamSide string

const (
	SideA TeamSide = "A"
	SideB TeamSide = "B"
)

func (s TeamSide) Valid() bool {
	return s == SideA || s == SideB
}

// SetScore is the score of a single set.
type SetScore struct {
	ScoreA uint `json:"score_a"`
	ScoreB uint `json:"score_b"`
}

// Match is the authoritative record of one match's progress.
// Sets is append-only: the last element is the set being played unless the match is finished.
type Match struct {
	ID           string      `json:"id"`
	TournamentID *string     `json:"tournament_id,omitempty"`
	TeamAID      string      `json:"team_a_id"`
	TeamBID      string      `json:"team_b_id"`
	TeamAName    string      `json:"team_a_name,omitempty"`
	TeamBName    string      `json:"team_b_name,omitempty"`
	TotalSets    int         `json:"total_sets"`
	PointsPerSet int         `json:"points_per_set"`
	Sets         []SetScore  `json:"sets"`
	Status       MatchStatus `json:"status"`
	WinnerTeamID *string     `json:"winner_team_id,omitempty"`

	// Fixture placement. Round-robin fixtures use round 1; Leg is 2 for the reverse leg.
	Round      int    `json:"round,omitempty"`
	RoundLabel string `json:"round_label,omitempty"`
	Leg        int    `json:"leg,omitempty"`
	Order      int    `json:"order,omitempty"`

	StandingsApplied bool       `json:"standings_applied,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`

	// Version is the store revision the match was read at. Not persisted as a field.
	Version int64 `json:"-"`
}

// Options returns the format parameters of the match.
func (m Match) Options() MatchOptions {
	return MatchOptions{TotalSets: m.TotalSets, PointsPerSet: m.PointsPerSet}
}

// TeamID returns the id of the team playing on the given side.
func (m Match) TeamID(side TeamSide) string {
	if side == SideB {
		return m.TeamBID
	}
	return m.TeamAID
}

// LoserTeamID returns the id of the losing team of a finished match.
func (m Match) LoserTeamID() (string, bool) {
	if m.Status != MatchStatusFinished || m.WinnerTeamID == nil {
		return "", false
	}
	if *m.WinnerTeamID == m.TeamAID {
		return m.TeamBID, true
	}
	return m.TeamAID, true
}

func (m Match) InTournament(tournamentID string) bool {
	return m.TournamentID != nil && *m.TournamentID == tournamentID
}

// Clone returns a deep copy so engines never alias the caller's sets slice.
func (m Match) Clone() Match {
	c := m
	if m.Sets != nil {
		c.Sets = make([]SetScore, len(m.Sets))
		copy(c.Sets, m.Sets)
	}
	if m.TournamentID != nil {
		id := *m.TournamentID
		c.TournamentID = &id
	}
	if m.WinnerTeamID != nil {
		id := *m.WinnerTeamID
		c.WinnerTeamID = &id
	}
	return c
}
