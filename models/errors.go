package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by the engines, the services and the HTTP layer.
// Callers branch on them with errors.Is.
var (
	// ErrInvalidTransition - the match or tournament is not in a state that permits the operation.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNoOp - the operation has nothing to act on (undo with no points in the current set).
	ErrNoOp = errors.New("nothing to do")
	// ErrNotFound - a referenced team, player, tournament or match does not exist.
	ErrNotFound = errors.New("requested resource not found")
)

var (
	ErrInvalidMatchFormat      = errors.New("invalid match format")
	ErrInvalidTournamentFormat = errors.New("invalid tournament format")
	ErrUnknownTeamSide         = errors.New("unknown team side")

	ErrFixturesLocked       = fmt.Errorf("%w: fixtures already generated", ErrInvalidTransition)
	ErrNotEnoughTeams       = fmt.Errorf("%w: at least 2 teams are required", ErrInvalidTransition)
	ErrTournamentCompleted  = fmt.Errorf("%w: tournament is completed", ErrInvalidTransition)
	ErrFinishedMatchesExist = fmt.Errorf("%w: finished matches would be purged", ErrInvalidTransition)
	ErrMatchNotFinished     = fmt.Errorf("%w: match is not finished", ErrInvalidTransition)
	ErrPlayerAlreadyInTeam  = fmt.Errorf("%w: player already belongs to a team", ErrInvalidTransition)
	ErrTeamInUse            = fmt.Errorf("%w: team is referenced by an active tournament", ErrInvalidTransition)
)
