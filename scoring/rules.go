package scoring

import "github.com/Dosada05/volleyball-tournament/models"

// SetComplete reports whether a set has been won: one team reached
// pointsPerSet and leads by at least two.
func SetComplete(s models.SetScore, pointsPerSet int) bool {
	hi, lo := s.ScoreA, s.ScoreB
	if lo > hi {
		hi, lo = lo, hi
	}
	return pointsPerSet > 0 && hi >= uint(pointsPerSet) && hi-lo >= 2
}

// SetsNeeded is the number of sets that wins a best-of-totalSets match.
func SetsNeeded(totalSets int) int {
	return (totalSets + 1) / 2
}

// SetsWon counts completed sets won by each team. The in-progress set of a
// live match is never complete, so it only counts once it has been won.
func SetsWon(m models.Match) (a, b int) {
	for _, s := range m.Sets {
		if !SetComplete(s, m.PointsPerSet) {
			continue
		}
		if s.ScoreA > s.ScoreB {
			a++
		} else if s.ScoreB > s.ScoreA {
			b++
		}
	}
	return a, b
}

// CurrentSetNumber is the 1-based number of the set being played, or of the
// last set played once the match is finished. It is 0 before the match starts.
func CurrentSetNumber(m models.Match) int {
	return len(m.Sets)
}

// Scoreboard returns the score of the current set.
func Scoreboard(m models.Match) (models.SetScore, bool) {
	if len(m.Sets) == 0 {
		return models.SetScore{}, false
	}
	return m.Sets[len(m.Sets)-1], true
}
