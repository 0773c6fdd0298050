package models

import "time"

// TeamStat is one row of a tournament points table.
type TeamStat struct {
	TournamentID string    `json:"tournament_id"`
	TeamID       string    `json:"team_id"`
	TeamName     string    `json:"team_name,omitempty"`
	Played       int       `json:"played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Points       int       `json:"points"`
	Rank         int       `json:"rank,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`

	Version int64 `json:"-"`
}
