package repositories

import (
	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/store"
)

// Keys written by earlier clients. They are read once and dropped on the
// next write of the match.
var legacyMatchKeys = []string{
	"tournamentId", "tournamentName", "type",
	"teamAId", "teamBId", "teamAName", "teamBName",
	"totalSets", "pointsPerSet", "winnerTeamId",
	"setScores", "livePoints", "currentPoints", "currentSet",
	"teamAScore", "teamBScore", "teamASetsWon", "teamBSetsWon",
	"createdAt", "updatedAt",
}

type legacySet struct {
	TeamA uint `json:"teamA"`
	TeamB uint `json:"teamB"`
}

func (s legacySet) score() models.SetScore {
	return models.SetScore{ScoreA: s.TeamA, ScoreB: s.TeamB}
}

type legacyMatch struct {
	TournamentID  *string     `json:"tournamentId"`
	TeamAID       string      `json:"teamAId"`
	TeamBID       string      `json:"teamBId"`
	TeamAName     string      `json:"teamAName"`
	TeamBName     string      `json:"teamBName"`
	TotalSets     int         `json:"totalSets"`
	PointsPerSet  int         `json:"pointsPerSet"`
	WinnerTeamID  *string     `json:"winnerTeamId"`
	Sets          []legacySet `json:"sets"`
	SetScores     []legacySet `json:"setScores"`
	LivePoints    *legacySet  `json:"livePoints"`
	CurrentPoints *legacySet  `json:"currentPoints"`
}

var legacyStatuses = map[string]models.MatchStatus{
	"scheduled": models.MatchStatusUpcoming,
	"completed": models.MatchStatusFinished,
}

// decodeMatch reads a match document in the canonical shape or any of the
// legacy shapes. Sets-won counters are never read; they follow from the sets.
func decodeMatch(rec *store.Record) (*models.Match, error) {
	m := &models.Match{}
	if err := fromFields(rec, m); err != nil {
		return nil, err
	}
	m.ID = rec.ID
	m.Version = rec.Version

	if !isLegacyMatch(rec.Fields) {
		return m, nil
	}

	var old legacyMatch
	if err := fromFields(rec, &old); err != nil {
		return nil, err
	}
	if m.TournamentID == nil && old.TournamentID != nil && *old.TournamentID != "" {
		m.TournamentID = old.TournamentID
	}
	m.TeamAID = firstNonEmpty(m.TeamAID, old.TeamAID)
	m.TeamBID = firstNonEmpty(m.TeamBID, old.TeamBID)
	m.TeamAName = firstNonEmpty(m.TeamAName, old.TeamAName)
	m.TeamBName = firstNonEmpty(m.TeamBName, old.TeamBName)
	if m.TotalSets == 0 {
		m.TotalSets = old.TotalSets
	}
	if m.PointsPerSet == 0 {
		m.PointsPerSet = old.PointsPerSet
	}
	if m.WinnerTeamID == nil && old.WinnerTeamID != nil && *old.WinnerTeamID != "" {
		m.WinnerTeamID = old.WinnerTeamID
	}
	if status, ok := legacyStatuses[string(m.Status)]; ok {
		m.Status = status
	}

	switch {
	case hasLegacySets(rec.Fields):
		m.Sets = make([]models.SetScore, 0, len(old.Sets))
		for _, s := range old.Sets {
			m.Sets = append(m.Sets, s.score())
		}
	case old.SetScores != nil || old.LivePoints != nil || old.CurrentPoints != nil:
		m.Sets = make([]models.SetScore, 0, len(old.SetScores)+1)
		for _, s := range old.SetScores {
			m.Sets = append(m.Sets, s.score())
		}
		if m.Status == models.MatchStatusLive {
			live := old.LivePoints
			if live == nil {
				live = old.CurrentPoints
			}
			if live == nil {
				live = &legacySet{}
			}
			m.Sets = append(m.Sets, live.score())
		}
	}
	return m, nil
}

// encodeMatch produces canonical fields, removing legacy keys and optional
// keys the match no longer carries.
func encodeMatch(m *models.Match) (map[string]any, error) {
	drop := append([]string{"winner_team_id", "round_label", "tournament_id"}, legacyMatchKeys...)
	fields, err := toFields(m, drop...)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}

func isLegacyMatch(fields map[string]any) bool {
	if hasLegacySets(fields) {
		return true
	}
	for _, key := range legacyMatchKeys {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func hasLegacySets(fields map[string]any) bool {
	sets, ok := fields["sets"].([]any)
	if !ok || len(sets) == 0 {
		return false
	}
	first, ok := sets[0].(map[string]any)
	if !ok {
		return false
	}
	_, hasA := first["teamA"]
	_, hasB := first["teamB"]
	return hasA || hasB
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
