package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/volleyball-tournament/models"
)

// Errors shared by the services and the HTTP error mapping.
var (
	// Validation
	ErrValidationFailed       = errors.New("validation failed")
	ErrTeamNameRequired       = fmt.Errorf("%w: team name is required", ErrValidationFailed)
	ErrPlayerNameRequired     = fmt.Errorf("%w: player name is required", ErrValidationFailed)
	ErrTournamentNameRequired = fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	ErrMatchTeamsRequired     = fmt.Errorf("%w: both team ids are required", ErrValidationFailed)
	ErrSameTeam               = fmt.Errorf("%w: a match needs two different teams", ErrValidationFailed)

	// Business rules
	ErrTeamNotInTournament = fmt.Errorf("%w: team is not registered for the tournament", models.ErrInvalidTransition)
	ErrTeamAlreadyAdded    = fmt.Errorf("%w: team is already registered for the tournament", models.ErrInvalidTransition)
	ErrNotKnockout         = fmt.Errorf("%w: tournament format is not knockout", models.ErrInvalidTransition)
	ErrRoundNotFinished    = fmt.Errorf("%w: current knockout round has unfinished matches", models.ErrInvalidTransition)
	ErrSlotNotAssignable   = fmt.Errorf("%w: only upcoming knockout matches accept slot changes", models.ErrInvalidTransition)
	ErrPlayerNotInTeam     = fmt.Errorf("%w: player is not on the team", models.ErrInvalidTransition)

	// Concurrency
	ErrWriteConflict = errors.New("record kept changing, retries exhausted")
)
