// Package scoring turns raw point events into set and match outcomes.
//
// Every operation takes the current match by value and returns a new one.
// The engine never touches storage and the input match is never modified.
package scoring

import (
	"fmt"

	"github.com/Dosada05/volleyball-tournament/models"
)

// Start moves an upcoming match to live with a single empty set.
func Start(match models.Match) (models.Match, error) {
	if match.Status != models.MatchStatusUpcoming {
		return match, fmt.Errorf("%w: cannot start match %s in status %q", models.ErrInvalidTransition, match.ID, match.Status)
	}
	if err := match.Options().Validate(); err != nil {
		return match, err
	}

	next := match.Clone()
	next.Status = models.MatchStatusLive
	next.Sets = []models.SetScore{{}}
	next.WinnerTeamID = nil
	return next, nil
}

// AddPoint adds one point for side to the current set, then closes the set
// and, when one team has won the required number of sets, the match.
func AddPoint(match models.Match, side models.TeamSide) (models.Match, error) {
	if !side.Valid() {
		return match, fmt.Errorf("%w: %q", models.ErrUnknownTeamSide, side)
	}
	if match.Status != models.MatchStatusLive {
		return match, fmt.Errorf("%w: cannot score match %s in status %q", models.ErrInvalidTransition, match.ID, match.Status)
	}
	if len(match.Sets) == 0 {
		return match, fmt.Errorf("%w: live match %s has no sets", models.ErrInvalidTransition, match.ID)
	}

	next := match.Clone()
	current := &next.Sets[len(next.Sets)-1]
	if side == models.SideA {
		current.ScoreA++
	} else {
		current.ScoreB++
	}

	if !SetComplete(*current, next.PointsPerSet) {
		return next, nil
	}

	wonA, wonB := SetsWon(next)
	needed := SetsNeeded(next.TotalSets)
	switch {
	case wonA >= needed:
		finish(&next, next.TeamAID)
	case wonB >= needed:
		finish(&next, next.TeamBID)
	default:
		next.Sets = append(next.Sets, models.SetScore{})
	}
	return next, nil
}

// UndoLastPoint removes one point from the current set.
//
// There is no point log: the point is taken from the team that is ahead or
// level (team A on a tie) when it has a nonzero score, otherwise from team B.
// After alternating points ending level this can remove a point that was not
// the last one scored. Undo never reaches back into a completed set.
func UndoLastPoint(match models.Match) (models.Match, error) {
	if match.Status != models.MatchStatusLive || len(match.Sets) == 0 {
		return match, fmt.Errorf("%w: match %s is not live", models.ErrNoOp, match.ID)
	}
	last := match.Sets[len(match.Sets)-1]
	if last.ScoreA+last.ScoreB == 0 {
		return match, fmt.Errorf("%w: no points in the current set of match %s", models.ErrNoOp, match.ID)
	}

	next := match.Clone()
	current := &next.Sets[len(next.Sets)-1]
	if current.ScoreA >= current.ScoreB && current.ScoreA > 0 {
		current.ScoreA--
	} else {
		current.ScoreB--
	}
	return next, nil
}

func finish(m *models.Match, winnerID string) {
	winner := winnerID
	m.Status = models.MatchStatusFinished
	m.WinnerTeamID = &winner
}
