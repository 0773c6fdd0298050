package models

import "time"

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CaptainID *string   `json:"captain_id,omitempty"`
	OwnerID   *string   `json:"owner_id,omitempty"`
	PlayerIDs []string  `json:"player_ids"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"-"`

	Players []Player `json:"players,omitempty"`
}

// HasPlayer reports whether the roster contains the player.
func (t Team) HasPlayer(playerID string) bool {
	for _, id := range t.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Player belongs to at most one team at a time.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position,omitempty"`
	TeamID    *string   `json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"-"`
}
