package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
)

type CreateTeamInput struct {
	Name      string  `json:"name"`
	CaptainID *string `json:"captain_id,omitempty"`
	OwnerID   *string `json:"owner_id,omitempty"`
}

type CreatePlayerInput struct {
	Name     string  `json:"name"`
	Position string  `json:"position,omitempty"`
	TeamID   *string `json:"team_id,omitempty"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	// GetTeam returns the team with its roster expanded.
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]*models.Team, error)
	CreatePlayer(ctx context.Context, input CreatePlayerInput) (*models.Player, error)
	AddPlayer(ctx context.Context, teamID, playerID string) (*models.Team, error)
	RemovePlayer(ctx context.Context, teamID, playerID string) (*models.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

type teamService struct {
	teamRepo       repositories.TeamRepository
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	retries        int
	logger         *slog.Logger
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	retries int,
	logger *slog.Logger,
) TeamService {
	if retries < 0 {
		retries = DefaultWriteRetries
	}
	return &teamService{
		teamRepo:       teamRepo,
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		retries:        retries,
		logger:         logger,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	team := &models.Team{
		Name:      name,
		CaptainID: input.CaptainID,
		OwnerID:   input.OwnerID,
		PlayerIDs: []string{},
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Team created", slog.String("team_id", team.ID), slog.String("name", team.Name))
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	team.Players = make([]models.Player, 0, len(team.PlayerIDs))
	for _, playerID := range team.PlayerIDs {
		p, err := s.playerRepo.GetByID(ctx, playerID)
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			s.logger.WarnContext(ctx, "Roster references a missing player",
				slog.String("team_id", id), slog.String("player_id", playerID))
			continue
		}
		if err != nil {
			return nil, err
		}
		team.Players = append(team.Players, *p)
	}
	return team, nil
}

// ListTeams returns every team without expanding rosters.
func (s *teamService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	return s.teamRepo.List(ctx)
}

func (s *teamService) CreatePlayer(ctx context.Context, input CreatePlayerInput) (*models.Player, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrPlayerNameRequired
	}
	teamID := strings.TrimSpace(derefString(input.TeamID))
	if teamID != "" {
		if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
			return nil, err
		}
	}

	player := &models.Player{Name: name, Position: strings.TrimSpace(input.Position)}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, err
	}
	if teamID != "" {
		if _, err := s.AddPlayer(ctx, teamID, player.ID); err != nil {
			return nil, err
		}
		player.TeamID = &teamID
	}
	return player, nil
}

// AddPlayer puts a player on a roster. A player is on at most one team, so
// moving between teams means removing first. The player record is claimed
// first; only the claim winner gets on the roster.
func (s *teamService) AddPlayer(ctx context.Context, teamID, playerID string) (*models.Team, error) {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		return nil, err
	}

	err := retryOnConflict(ctx, s.logger, s.retries, "player", playerID, func() error {
		player, err := s.playerRepo.GetByID(ctx, playerID)
		if err != nil {
			return err
		}
		if player.TeamID != nil {
			if *player.TeamID != teamID {
				return fmt.Errorf("%w: player %s is on team %s", models.ErrPlayerAlreadyInTeam, playerID, *player.TeamID)
			}
			return nil
		}
		player.TeamID = &teamID
		return s.playerRepo.Update(ctx, player)
	})
	if err != nil {
		return nil, err
	}

	team, err := s.updateRoster(ctx, teamID, func(team *models.Team) (bool, error) {
		if team.HasPlayer(playerID) {
			return false, nil
		}
		team.PlayerIDs = append(team.PlayerIDs, playerID)
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			if rerr := s.releasePlayer(ctx, teamID, playerID); rerr != nil {
				return nil, errors.Join(err, rerr)
			}
		}
		return nil, err
	}
	return team, nil
}

func (s *teamService) RemovePlayer(ctx context.Context, teamID, playerID string) (*models.Team, error) {
	team, err := s.updateRoster(ctx, teamID, func(team *models.Team) (bool, error) {
		if !team.HasPlayer(playerID) {
			return false, fmt.Errorf("%w: player %s, team %s", ErrPlayerNotInTeam, playerID, teamID)
		}
		roster := make([]string, 0, len(team.PlayerIDs))
		for _, id := range team.PlayerIDs {
			if id != playerID {
				roster = append(roster, id)
			}
		}
		team.PlayerIDs = roster
		if team.CaptainID != nil && *team.CaptainID == playerID {
			team.CaptainID = nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.releasePlayer(ctx, teamID, playerID); err != nil {
		return nil, err
	}
	return team, nil
}

// DeleteTeam refuses while a tournament that is not completed lists the team.
// Players of a deleted team become free agents.
func (s *teamService) DeleteTeam(ctx context.Context, id string) error {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{})
	if err != nil {
		return err
	}
	for _, t := range tournaments {
		if !t.Completed && t.HasTeam(id) {
			return fmt.Errorf("%w: team %s, tournament %s", models.ErrTeamInUse, id, t.ID)
		}
	}

	if err := s.teamRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete team %s: %w", id, err)
	}
	// Players claimed after the roster was read still point at the team.
	claimed, err := s.playerRepo.ListByTeam(ctx, id)
	if err != nil {
		return err
	}
	members := append([]string{}, team.PlayerIDs...)
	for _, p := range claimed {
		if !slices.Contains(members, p.ID) {
			members = append(members, p.ID)
		}
	}
	for _, playerID := range members {
		if err := s.releasePlayer(ctx, id, playerID); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "Team deleted", slog.String("team_id", id), slog.Int("released_players", len(members)))
	return nil
}

// updateRoster applies fn to the latest stored team and writes it back under
// its version. fn reports whether anything changed.
func (s *teamService) updateRoster(ctx context.Context, teamID string, fn func(*models.Team) (bool, error)) (*models.Team, error) {
	var saved *models.Team
	err := retryOnConflict(ctx, s.logger, s.retries, "team", teamID, func() error {
		team, err := s.teamRepo.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		changed, err := fn(team)
		if err != nil {
			return err
		}
		if changed {
			if err := s.teamRepo.Update(ctx, team); err != nil {
				return err
			}
		}
		saved = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// releasePlayer clears the player's team if it still points at teamID.
func (s *teamService) releasePlayer(ctx context.Context, teamID, playerID string) error {
	return retryOnConflict(ctx, s.logger, s.retries, "player", playerID, func() error {
		player, err := s.playerRepo.GetByID(ctx, playerID)
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if player.TeamID == nil || *player.TeamID != teamID {
			return nil
		}
		player.TeamID = nil
		return s.playerRepo.Update(ctx, player)
	})
}
