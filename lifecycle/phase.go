// Package lifecycle derives a tournament's phase and gates fixture generation.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
)

// Phase derives the tournament phase at now.
//
// A tournament is completed only through its explicit completion flag. Once
// startDate has been reached it stays ongoing, including after endDate, until
// someone completes it.
func Phase(t models.Tournament, now time.Time) models.Phase {
	if t.Completed {
		return models.PhaseCompleted
	}
	if !t.StartDate.IsZero() && !now.Before(t.StartDate) {
		return models.PhaseOngoing
	}
	return models.PhaseUpcoming
}

// PastEndDate reports an ongoing tournament that is waiting for manual completion.
func PastEndDate(t models.Tournament, now time.Time) bool {
	return !t.Completed && !t.EndDate.IsZero() && now.After(t.EndDate)
}

// CanGenerateFixtures checks every precondition of fixture generation.
func CanGenerateFixtures(t models.Tournament, teamCount int, now time.Time) error {
	if Phase(t, now) == models.PhaseCompleted {
		return fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
	}
	if t.FixturesLocked {
		return fmt.Errorf("%w: %s", models.ErrFixturesLocked, t.ID)
	}
	if teamCount < 2 {
		return fmt.Errorf("%w: tournament %s has %d", models.ErrNotEnoughTeams, t.ID, teamCount)
	}
	return nil
}

// CanRegenerateFixtures allows regeneration of locked fixtures while the
// tournament is not completed.
func CanRegenerateFixtures(t models.Tournament, teamCount int, now time.Time) error {
	if Phase(t, now) == models.PhaseCompleted {
		return fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
	}
	if teamCount < 2 {
		return fmt.Errorf("%w: tournament %s has %d", models.ErrNotEnoughTeams, t.ID, teamCount)
	}
	return nil
}

// LockFixtures returns a copy with the fixture lock set. The lock is never released.
func LockFixtures(t models.Tournament) models.Tournament {
	t.FixturesLocked = true
	return t
}

// Complete sets the explicit completion flag.
func Complete(t models.Tournament, now time.Time) (models.Tournament, error) {
	if t.Completed {
		return t, fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
	}
	at := now
	t.Completed = true
	t.CompletedAt = &at
	t.Phase = models.PhaseCompleted
	return t, nil
}

// ValidateSchedule checks the tournament dates.
func ValidateSchedule(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrDatesRequired
	}
	if end.Before(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
