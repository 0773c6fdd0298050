// Package standings folds finished matches into a tournament points table.
package standings

import (
	"fmt"
	"sort"

	"github.com/Dosada05/volleyball-tournament/models"
)

const (
	PointsForWin  = 2
	PointsForLoss = 0
)

// NewTable returns a zeroed row for every team.
func NewTable(tournamentID string, teams []*models.Team) []models.TeamStat {
	table := make([]models.TeamStat, 0, len(teams))
	for _, t := range teams {
		if t == nil {
			continue
		}
		table = append(table, models.TeamStat{
			TournamentID: tournamentID,
			TeamID:       t.ID,
			TeamName:     t.Name,
		})
	}
	return table
}

// ApplyResult records one finished match. It increments exactly once per
// call; guarding against applying the same match twice is up to the caller.
func ApplyResult(stats []models.TeamStat, match models.Match) ([]models.TeamStat, error) {
	if match.Status != models.MatchStatusFinished || match.WinnerTeamID == nil {
		return nil, fmt.Errorf("%w: match %s", models.ErrMatchNotFinished, match.ID)
	}
	winnerID := *match.WinnerTeamID
	loserID, _ := match.LoserTeamID()

	winner, loser := -1, -1
	for i := range stats {
		switch stats[i].TeamID {
		case winnerID:
			winner = i
		case loserID:
			loser = i
		}
	}
	if winner < 0 {
		return nil, fmt.Errorf("%w: no standings row for team %s", models.ErrNotFound, winnerID)
	}
	if loser < 0 {
		return nil, fmt.Errorf("%w: no standings row for team %s", models.ErrNotFound, loserID)
	}

	next := make([]models.TeamStat, len(stats))
	copy(next, stats)

	next[winner].Played++
	next[winner].Wins++
	next[winner].Points += PointsForWin

	next[loser].Played++
	next[loser].Losses++
	next[loser].Points += PointsForLoss

	return next, nil
}

// Rank orders the table by points, then wins (both descending), then by
// matches played ascending: of two tied teams the one that needed fewer
// matches ranks higher. Rank is filled with the 1-based position.
func Rank(stats []models.TeamStat) []models.TeamStat {
	ranked := make([]models.TeamStat, len(stats))
	copy(ranked, stats)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		if ranked[i].Wins != ranked[j].Wins {
			return ranked[i].Wins > ranked[j].Wins
		}
		return ranked[i].Played < ranked[j].Played
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
