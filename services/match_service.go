package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
	"github.com/Dosada05/volleyball-tournament/scoring"
	"github.com/Dosada05/volleyball-tournament/standings"
	"github.com/Dosada05/volleyball-tournament/store"
)

type CreateMatchInput struct {
	TournamentID *string `json:"tournament_id,omitempty"`
	TeamAID      string  `json:"team_a_id"`
	TeamBID      string  `json:"team_b_id"`
	TotalSets    int     `json:"total_sets,omitempty"`
	PointsPerSet int     `json:"points_per_set,omitempty"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error)
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	StartMatch(ctx context.Context, id string) (*models.Match, error)
	AddPoint(ctx context.Context, id string, side models.TeamSide) (*models.Match, error)
	UndoLastPoint(ctx context.Context, id string) (*models.Match, error)
	ListMatches(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error)
	ListTournamentMatches(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]*models.Match, error)
	WatchMatch(id string, onChange func(*models.Match)) store.Unsubscribe
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	statRepo       repositories.TeamStatRepository
	retries        int
	logger         *slog.Logger
	now            func() time.Time
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	statRepo repositories.TeamStatRepository,
	retries int,
	logger *slog.Logger,
) MatchService {
	if retries < 0 {
		retries = DefaultWriteRetries
	}
	return &matchService{
		matchRepo:      matchRepo,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		statRepo:       statRepo,
		retries:        retries,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	input.TeamAID = strings.TrimSpace(input.TeamAID)
	input.TeamBID = strings.TrimSpace(input.TeamBID)
	if input.TeamAID == "" || input.TeamBID == "" {
		return nil, ErrMatchTeamsRequired
	}
	if input.TeamAID == input.TeamBID {
		return nil, ErrSameTeam
	}
	opts := models.MatchOptions{TotalSets: input.TotalSets, PointsPerSet: input.PointsPerSet}.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	teams, err := loadTeams(ctx, s.teamRepo, []string{input.TeamAID, input.TeamBID})
	if err != nil {
		return nil, err
	}

	var tournamentID *string
	if id := strings.TrimSpace(derefString(input.TournamentID)); id != "" {
		t, err := s.tournamentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.Completed {
			return nil, fmt.Errorf("%w: %s", models.ErrTournamentCompleted, id)
		}
		for _, team := range teams {
			if !t.HasTeam(team.ID) {
				return nil, fmt.Errorf("%w: team %s, tournament %s", ErrTeamNotInTournament, team.ID, id)
			}
		}
		tournamentID = &id
	}

	match := &models.Match{
		TournamentID: tournamentID,
		TeamAID:      teams[0].ID,
		TeamBID:      teams[1].ID,
		TeamAName:    teams[0].Name,
		TeamBName:    teams[1].Name,
		TotalSets:    opts.TotalSets,
		PointsPerSet: opts.PointsPerSet,
		Sets:         []models.SetScore{},
		Status:       models.MatchStatusUpcoming,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Match created",
		slog.String("match_id", match.ID), slog.String("tournament_id", derefString(tournamentID)))
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	return s.matchRepo.GetByID(ctx, id)
}

func (s *matchService) StartMatch(ctx context.Context, id string) (*models.Match, error) {
	return s.mutate(ctx, id, scoring.Start)
}

func (s *matchService) AddPoint(ctx context.Context, id string, side models.TeamSide) (*models.Match, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownTeamSide, side)
	}
	return s.mutate(ctx, id, func(m models.Match) (models.Match, error) {
		return scoring.AddPoint(m, side)
	})
}

func (s *matchService) UndoLastPoint(ctx context.Context, id string) (*models.Match, error) {
	return s.mutate(ctx, id, scoring.UndoLastPoint)
}

// ListMatches returns standalone and tournament matches alike, newest first.
func (s *matchService) ListMatches(ctx context.Context, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matchRepo.List(ctx, status)
}

func (s *matchService) ListTournamentMatches(ctx context.Context, tournamentID string, status *models.MatchStatus) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.matchRepo.ListByTournament(ctx, tournamentID, status)
}

func (s *matchService) WatchMatch(id string, onChange func(*models.Match)) store.Unsubscribe {
	return s.matchRepo.Subscribe(id, onChange)
}

// mutate applies a scoring operation to the latest stored match and writes it
// back if nobody else wrote in between. The write that finishes a tournament
// match also claims its standings update, so the result is counted once.
func (s *matchService) mutate(ctx context.Context, id string, op func(models.Match) (models.Match, error)) (*models.Match, error) {
	var saved *models.Match
	var claimed bool
	err := retryOnConflict(ctx, s.logger, s.retries, "match", id, func() error {
		current, err := s.matchRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		next, err := op(*current)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		claimed = false
		if current.Status == models.MatchStatusUpcoming && next.Status == models.MatchStatusLive {
			next.StartedAt = &now
		}
		if current.Status != models.MatchStatusFinished && next.Status == models.MatchStatusFinished {
			next.FinishedAt = &now
			if next.TournamentID != nil && !next.StandingsApplied {
				next.StandingsApplied = true
				claimed = true
			}
		}

		if err := s.matchRepo.Update(ctx, &next); err != nil {
			return err
		}
		saved = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if saved.Status == models.MatchStatusFinished && claimed {
		s.logger.InfoContext(ctx, "Match finished",
			slog.String("match_id", saved.ID), slog.String("winner_team_id", derefString(saved.WinnerTeamID)))
		if err := s.applyStandings(ctx, saved); err != nil {
			s.logger.ErrorContext(ctx, "Failed to apply match result to standings",
				slog.String("match_id", saved.ID), slog.String("tournament_id", derefString(saved.TournamentID)), slog.Any("error", err))
		}
	}
	return saved, nil
}

// errResultWithdrawn stops a standings update whose match was removed, for
// example by a fixture regeneration that also reset the table.
var errResultWithdrawn = errors.New("match no longer exists")

// applyStandings updates the winner's and the loser's rows one at a time, each
// under its own version check, so concurrent results never overwrite each other.
func (s *matchService) applyStandings(ctx context.Context, m *models.Match) error {
	loserID, ok := m.LoserTeamID()
	if !ok || m.TournamentID == nil {
		return fmt.Errorf("%w: match %s", models.ErrMatchNotFinished, m.ID)
	}
	for _, teamID := range []string{*m.WinnerTeamID, loserID} {
		err := s.applyToRow(ctx, m, teamID)
		if errors.Is(err, errResultWithdrawn) {
			s.logger.InfoContext(ctx, "Match removed before its result was counted",
				slog.String("match_id", m.ID), slog.String("tournament_id", *m.TournamentID))
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyToRow checks the match still exists after reading the rows and before
// saving. A reset table is written after the matches are deleted, so rows read
// while the match exists are older than any reset and the save conflicts.
func (s *matchService) applyToRow(ctx context.Context, m *models.Match, teamID string) error {
	tournamentID := *m.TournamentID
	return retryOnConflict(ctx, s.logger, s.retries, "standing", tournamentID+":"+teamID, func() error {
		rows := make([]models.TeamStat, 0, 2)
		target := 0
		for _, side := range []models.TeamSide{models.SideA, models.SideB} {
			row, err := s.statRow(ctx, m, side)
			if err != nil {
				return err
			}
			if row.TeamID == teamID {
				target = len(rows)
			}
			rows = append(rows, *row)
		}

		updated, err := standings.ApplyResult(rows, *m)
		if err != nil {
			return err
		}

		if _, err := s.matchRepo.GetByID(ctx, m.ID); err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: %s", errResultWithdrawn, m.ID)
			}
			return err
		}
		row := updated[target]
		return s.statRepo.Save(ctx, &row)
	})
}

// statRow returns the stored row of one side, or a fresh one for a team that
// has none yet.
func (s *matchService) statRow(ctx context.Context, m *models.Match, side models.TeamSide) (*models.TeamStat, error) {
	teamID := m.TeamID(side)
	row, err := s.statRepo.Get(ctx, *m.TournamentID, teamID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, repositories.ErrTeamStatNotFound) {
		return nil, err
	}
	name := m.TeamAName
	if side == models.SideB {
		name = m.TeamBName
	}
	return &models.TeamStat{TournamentID: *m.TournamentID, TeamID: teamID, TeamName: name}, nil
}
