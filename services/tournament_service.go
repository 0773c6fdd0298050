package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/volleyball-tournament/brackets"
	"github.com/Dosada05/volleyball-tournament/lifecycle"
	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
	"github.com/Dosada05/volleyball-tournament/standings"
	"github.com/Dosada05/volleyball-tournament/store"
)

// fixtureWriteLimit bounds concurrent match writes during generation.
const fixtureWriteLimit = 8

// FixtureArchiver keeps a copy of matches before regeneration removes them.
// It returns the location of the archive.
type FixtureArchiver interface {
	ArchiveFixtures(ctx context.Context, tournament *models.Tournament, matches []*models.Match) (string, error)
}

type CreateTournamentInput struct {
	Name         string                  `json:"name"`
	Format       models.TournamentFormat `json:"format"`
	StartDate    time.Time               `json:"start_date"`
	EndDate      time.Time               `json:"end_date"`
	TeamIDs      []string                `json:"team_ids"`
	TotalSets    int                     `json:"total_sets,omitempty"`
	PointsPerSet int                     `json:"points_per_set,omitempty"`
}

type TournamentDetails struct {
	Tournament *models.Tournament `json:"tournament"`
	Teams      []*models.Team     `json:"teams"`
	Matches    []*models.Match    `json:"matches"`
	Standings  []models.TeamStat  `json:"standings"`
	// AwaitingCompletion is set once the end date has passed without an
	// explicit completion.
	AwaitingCompletion bool `json:"awaiting_completion"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, phase *models.Phase) ([]*models.Tournament, error)
	AddTeam(ctx context.Context, tournamentID, teamID string) (*models.Tournament, error)
	GenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error)
	RegenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error)
	AdvanceKnockout(ctx context.Context, tournamentID string) ([]*models.Match, error)
	AssignKnockoutSlot(ctx context.Context, tournamentID, matchID string, side models.TeamSide, teamID string) (*models.Match, error)
	CompleteTournament(ctx context.Context, tournamentID string) (*models.Tournament, error)
	GetStandings(ctx context.Context, tournamentID string) ([]models.TeamStat, error)
	GetTournamentDetails(ctx context.Context, tournamentID string) (*TournamentDetails, error)
	// RefreshPhases rewrites the stored phase of tournaments whose derived
	// phase changed and reports how many were updated.
	RefreshPhases(ctx context.Context) (int, error)
	WatchTournament(id string, onChange func(*models.Tournament)) store.Unsubscribe
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	statRepo       repositories.TeamStatRepository
	archiver       FixtureArchiver
	retries        int
	logger         *slog.Logger
	now            func() time.Time
	newGenerator   func(models.TournamentFormat) (brackets.FixtureGenerator, error)
}

// NewTournamentService wires the service. archiver may be nil, in which case
// regeneration refuses to drop finished matches.
func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	statRepo repositories.TeamStatRepository,
	archiver FixtureArchiver,
	retries int,
	logger *slog.Logger,
) TournamentService {
	if retries < 0 {
		retries = DefaultWriteRetries
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		statRepo:       statRepo,
		archiver:       archiver,
		retries:        retries,
		logger:         logger,
		now:            time.Now,
		newGenerator:   brackets.NewGenerator,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if !input.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidTournamentFormat, input.Format)
	}
	if err := lifecycle.ValidateSchedule(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	opts := models.MatchOptions{TotalSets: input.TotalSets, PointsPerSet: input.PointsPerSet}.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	teamIDs := make([]string, 0, len(input.TeamIDs))
	seen := make(map[string]bool, len(input.TeamIDs))
	for _, id := range input.TeamIDs {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrTeamAlreadyAdded, id)
		}
		seen[id] = true
		teamIDs = append(teamIDs, id)
	}
	if _, err := loadTeams(ctx, s.teamRepo, teamIDs); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:         name,
		Format:       input.Format,
		StartDate:    input.StartDate.UTC(),
		EndDate:      input.EndDate.UTC(),
		TeamIDs:      teamIDs,
		MatchOptions: opts,
	}
	t.Phase = lifecycle.Phase(*t, s.now())
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Tournament created",
		slog.String("tournament_id", t.ID), slog.String("format", string(t.Format)), slog.Int("teams", len(t.TeamIDs)))
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Phase = lifecycle.Phase(*t, s.now())
	return t, nil
}

// ListTournaments filters on the phase derived now, not on the stored projection.
func (s *tournamentService) ListTournaments(ctx context.Context, phase *models.Phase) ([]*models.Tournament, error) {
	all, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := make([]*models.Tournament, 0, len(all))
	for _, t := range all {
		t.Phase = lifecycle.Phase(*t, now)
		if phase == nil || t.Phase == *phase {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *tournamentService) AddTeam(ctx context.Context, tournamentID, teamID string) (*models.Tournament, error) {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		return nil, err
	}
	return s.updateTournament(ctx, tournamentID, func(t *models.Tournament) error {
		if t.Completed {
			return fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
		}
		if t.FixturesLocked {
			return fmt.Errorf("%w: %s", models.ErrFixturesLocked, t.ID)
		}
		if t.HasTeam(teamID) {
			return fmt.Errorf("%w: %s", ErrTeamAlreadyAdded, teamID)
		}
		t.TeamIDs = append(t.TeamIDs, teamID)
		return nil
	})
}

// GenerateFixtures creates the first fixtures of a tournament. The fixture lock
// is written before any match, so two concurrent calls cannot both generate.
func (s *tournamentService) GenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	var fixtures []*models.Match
	var teams []*models.Team
	t, err := s.updateTournament(ctx, tournamentID, func(t *models.Tournament) error {
		var err error
		teams, err = loadTeams(ctx, s.teamRepo, t.TeamIDs)
		if err != nil {
			return err
		}
		if err := lifecycle.CanGenerateFixtures(*t, len(teams), s.now()); err != nil {
			return err
		}
		fixtures, err = s.generate(t, teams)
		if err != nil {
			return err
		}
		*t = lifecycle.LockFixtures(*t)
		if t.Format == models.FormatKnockout {
			t.KnockoutRound = 1
			t.ByeTeamIDs = roundByes(teams, fixtures)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.saveFixtures(ctx, fixtures); err != nil {
		return nil, err
	}
	if err := s.statRepo.Upsert(ctx, standings.NewTable(t.ID, teams)); err != nil {
		return nil, fmt.Errorf("failed to initialise standings of tournament %s: %w", t.ID, err)
	}
	s.logger.InfoContext(ctx, "Fixtures generated",
		slog.String("tournament_id", t.ID), slog.String("format", string(t.Format)), slog.Int("matches", len(fixtures)))
	return fixtures, nil
}

// RegenerateFixtures replaces every fixture of the tournament and resets the
// standings. Finished matches are only dropped after they were archived.
func (s *tournamentService) RegenerateFixtures(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	teams, err := loadTeams(ctx, s.teamRepo, t.TeamIDs)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanRegenerateFixtures(*t, len(teams), s.now()); err != nil {
		return nil, err
	}

	removed := 0
	err = retryOnConflict(ctx, s.logger, s.retries, "fixtures", t.ID, func() error {
		n, err := s.clearFixtures(ctx, t)
		removed += n
		return err
	})
	if err != nil {
		return nil, err
	}

	var fixtures []*models.Match
	t, err = s.updateTournament(ctx, tournamentID, func(t *models.Tournament) error {
		var err error
		fixtures, err = s.generate(t, teams)
		if err != nil {
			return err
		}
		*t = lifecycle.LockFixtures(*t)
		t.KnockoutRound, t.ByeTeamIDs = 0, nil
		if t.Format == models.FormatKnockout {
			t.KnockoutRound = 1
			t.ByeTeamIDs = roundByes(teams, fixtures)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.saveFixtures(ctx, fixtures); err != nil {
		return nil, err
	}
	if err := s.statRepo.DeleteByTournament(ctx, t.ID); err != nil {
		return nil, err
	}
	if err := s.statRepo.Upsert(ctx, standings.NewTable(t.ID, teams)); err != nil {
		return nil, fmt.Errorf("failed to reset standings of tournament %s: %w", t.ID, err)
	}
	s.logger.InfoContext(ctx, "Fixtures regenerated",
		slog.String("tournament_id", t.ID), slog.Int("removed", removed), slog.Int("matches", len(fixtures)))
	return fixtures, nil
}

// clearFixtures archives and deletes the current matches of t. Each match is
// deleted only at the version it was archived or counted at, so a match
// scored in the meantime fails the call with a version conflict and is looked
// at again on the next attempt. It reports how many matches were deleted.
func (s *tournamentService) clearFixtures(ctx context.Context, t *models.Tournament) (int, error) {
	existing, err := s.matchRepo.ListByTournament(ctx, t.ID, nil)
	if err != nil {
		return 0, err
	}
	finished := 0
	for _, m := range existing {
		if m.Status == models.MatchStatusFinished {
			finished++
		}
	}
	if finished > 0 {
		if s.archiver == nil {
			return 0, fmt.Errorf("%w: tournament %s has %d", models.ErrFinishedMatchesExist, t.ID, finished)
		}
		location, err := s.archiver.ArchiveFixtures(ctx, t, existing)
		if err != nil {
			return 0, fmt.Errorf("failed to archive fixtures of tournament %s: %w", t.ID, err)
		}
		s.logger.InfoContext(ctx, "Fixtures archived before regeneration",
			slog.String("tournament_id", t.ID), slog.Int("finished", finished), slog.String("location", location))
	}
	return s.deleteMatches(ctx, existing)
}

// AdvanceKnockout creates the next knockout round once every match of the
// current round is finished. Entrants are the round's winners in bracket
// order followed by teams still in the draw that sat the round out.
func (s *tournamentService) AdvanceKnockout(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	var fixtures []*models.Match
	t, err := s.updateTournament(ctx, tournamentID, func(t *models.Tournament) error {
		if t.Format != models.FormatKnockout {
			return fmt.Errorf("%w: %s", ErrNotKnockout, t.ID)
		}
		if t.Completed {
			return fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
		}
		if !t.FixturesLocked || t.KnockoutRound == 0 {
			return fmt.Errorf("%w: tournament %s has no fixtures yet", models.ErrInvalidTransition, t.ID)
		}

		matches, err := s.matchRepo.ListByTournament(ctx, t.ID, nil)
		if err != nil {
			return err
		}
		entrants, err := s.nextRoundEntrants(ctx, t, matches)
		if err != nil {
			return err
		}

		round := t.KnockoutRound + 1
		fixtures, err = brackets.NewKnockoutGenerator(brackets.WithSeedOrder()).GenerateFixtures(brackets.GenerateFixturesParams{
			TournamentID: t.ID,
			Teams:        entrants,
			Options:      t.MatchOptions,
			Round:        round,
		})
		if err != nil {
			return err
		}
		t.KnockoutRound = round
		t.ByeTeamIDs = roundByes(entrants, fixtures)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.saveFixtures(ctx, fixtures); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Knockout round created",
		slog.String("tournament_id", t.ID), slog.Int("round", t.KnockoutRound), slog.Int("matches", len(fixtures)))
	return fixtures, nil
}

// nextRoundEntrants returns the current round's winners followed by the
// round's byes. A team taken out of a match by slot assignment is neither, so
// it drops out of the draw.
func (s *tournamentService) nextRoundEntrants(ctx context.Context, t *models.Tournament, matches []*models.Match) ([]*models.Team, error) {
	eliminated := make(map[string]bool)
	played := make(map[string]bool)
	var winners []string
	for _, m := range matches {
		if loser, ok := m.LoserTeamID(); ok {
			eliminated[loser] = true
		}
		if m.Round != t.KnockoutRound {
			continue
		}
		if m.Status != models.MatchStatusFinished || m.WinnerTeamID == nil {
			return nil, fmt.Errorf("%w: match %s", ErrRoundNotFinished, m.ID)
		}
		played[m.TeamAID] = true
		played[m.TeamBID] = true
		winners = append(winners, *m.WinnerTeamID)
	}
	if len(winners) == 0 {
		return nil, fmt.Errorf("%w: round %d of tournament %s has no matches", models.ErrInvalidTransition, t.KnockoutRound, t.ID)
	}

	sitOuts := t.ByeTeamIDs
	if sitOuts == nil {
		// Rounds generated before byes were recorded.
		for _, id := range t.TeamIDs {
			if !played[id] && !eliminated[id] {
				sitOuts = append(sitOuts, id)
			}
		}
	}
	ids := winners
	for _, id := range sitOuts {
		if !played[id] && !eliminated[id] && slices.Contains(t.TeamIDs, id) {
			ids = append(ids, id)
		}
	}
	return loadTeams(ctx, s.teamRepo, ids)
}

// roundByes lists the entrants that got no match in fixtures, in draw order.
func roundByes(entrants []*models.Team, fixtures []*models.Match) []string {
	drawn := make(map[string]bool, 2*len(fixtures))
	for _, m := range fixtures {
		drawn[m.TeamAID] = true
		drawn[m.TeamBID] = true
	}
	byes := []string{}
	for _, team := range entrants {
		if !drawn[team.ID] {
			byes = append(byes, team.ID)
		}
	}
	return byes
}

// AssignKnockoutSlot replaces the team on one side of an upcoming knockout match.
func (s *tournamentService) AssignKnockoutSlot(ctx context.Context, tournamentID, matchID string, side models.TeamSide, teamID string) (*models.Match, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownTeamSide, side)
	}
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Format != models.FormatKnockout {
		return nil, fmt.Errorf("%w: %s", ErrNotKnockout, t.ID)
	}
	if t.Completed {
		return nil, fmt.Errorf("%w: %s", models.ErrTournamentCompleted, t.ID)
	}
	if !t.HasTeam(teamID) {
		return nil, fmt.Errorf("%w: team %s, tournament %s", ErrTeamNotInTournament, teamID, t.ID)
	}
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	var saved *models.Match
	err = retryOnConflict(ctx, s.logger, s.retries, "match", matchID, func() error {
		m, err := s.matchRepo.GetByID(ctx, matchID)
		if err != nil {
			return err
		}
		if !m.InTournament(t.ID) {
			return fmt.Errorf("%w: match %s in tournament %s", repositories.ErrMatchNotFound, matchID, t.ID)
		}
		if m.Status != models.MatchStatusUpcoming {
			return fmt.Errorf("%w: match %s is %s", ErrSlotNotAssignable, m.ID, m.Status)
		}
		other := m.TeamBID
		if side == models.SideB {
			other = m.TeamAID
		}
		if other == teamID {
			return fmt.Errorf("%w: %s", ErrSameTeam, teamID)
		}

		if side == models.SideA {
			m.TeamAID, m.TeamAName = team.ID, team.Name
		} else {
			m.TeamBID, m.TeamBName = team.ID, team.Name
		}
		if err := s.matchRepo.Update(ctx, m); err != nil {
			return err
		}
		saved = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Knockout slot assigned",
		slog.String("match_id", matchID), slog.String("side", string(side)), slog.String("team_id", teamID))
	return saved, nil
}

func (s *tournamentService) CompleteTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	t, err := s.updateTournament(ctx, tournamentID, func(t *models.Tournament) error {
		completed, err := lifecycle.Complete(*t, s.now().UTC())
		if err != nil {
			return err
		}
		*t = completed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Tournament completed", slog.String("tournament_id", t.ID))
	return t, nil
}

// GetStandings returns the ranked table. Teams without a stored row yet are
// listed with zeroes.
func (s *tournamentService) GetStandings(ctx context.Context, tournamentID string) ([]models.TeamStat, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	stats, err := s.statRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	teams, err := loadTeams(ctx, s.teamRepo, t.TeamIDs)
	if err != nil {
		return nil, err
	}
	return completeTable(t.ID, teams, stats), nil
}

func completeTable(tournamentID string, teams []*models.Team, stats []models.TeamStat) []models.TeamStat {
	names := teamNames(teams)
	have := make(map[string]bool, len(stats))
	for i := range stats {
		have[stats[i].TeamID] = true
		if name, ok := names[stats[i].TeamID]; ok {
			stats[i].TeamName = name
		}
	}
	var missing []*models.Team
	for _, team := range teams {
		if !have[team.ID] {
			missing = append(missing, team)
		}
	}
	return standings.Rank(append(stats, standings.NewTable(tournamentID, missing)...))
}

func (s *tournamentService) GetTournamentDetails(ctx context.Context, tournamentID string) (*TournamentDetails, error) {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	details := &TournamentDetails{
		Tournament:         t,
		AwaitingCompletion: lifecycle.PastEndDate(*t, s.now()),
	}

	var stats []models.TeamStat
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		teams, err := loadTeams(gCtx, s.teamRepo, t.TeamIDs)
		if err != nil {
			return err
		}
		details.Teams = teams
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, t.ID, nil)
		if err != nil {
			return fmt.Errorf("failed to load matches of tournament %s: %w", t.ID, err)
		}
		details.Matches = matches
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = s.statRepo.ListByTournament(gCtx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load standings of tournament %s: %w", t.ID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details.Standings = completeTable(t.ID, details.Teams, stats)
	return details, nil
}

func (s *tournamentService) RefreshPhases(ctx context.Context) (int, error) {
	now := s.now()
	updated := 0
	for _, stored := range []models.Phase{models.PhaseUpcoming, models.PhaseOngoing} {
		phase := stored
		tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{Phase: &phase})
		if err != nil {
			return updated, err
		}
		for _, t := range tournaments {
			derived := lifecycle.Phase(*t, now)
			if derived == t.Phase {
				continue
			}
			if err := s.tournamentRepo.UpdatePhase(ctx, t.ID, derived); err != nil {
				return updated, err
			}
			updated++
			s.logger.InfoContext(ctx, "Tournament phase changed",
				slog.String("tournament_id", t.ID), slog.String("from", string(t.Phase)), slog.String("to", string(derived)))
		}
	}
	return updated, nil
}

func (s *tournamentService) WatchTournament(id string, onChange func(*models.Tournament)) store.Unsubscribe {
	return s.tournamentRepo.Subscribe(id, onChange)
}

// updateTournament runs fn against the latest stored tournament and writes the
// result under a version check, retrying on conflicts.
func (s *tournamentService) updateTournament(ctx context.Context, id string, fn func(*models.Tournament) error) (*models.Tournament, error) {
	var saved *models.Tournament
	err := retryOnConflict(ctx, s.logger, s.retries, "tournament", id, func() error {
		t, err := s.tournamentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		t.Phase = lifecycle.Phase(*t, s.now())
		if err := s.tournamentRepo.Update(ctx, t); err != nil {
			return err
		}
		saved = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *tournamentService) generate(t *models.Tournament, teams []*models.Team) ([]*models.Match, error) {
	gen, err := s.newGenerator(t.Format)
	if err != nil {
		return nil, err
	}
	fixtures, err := gen.GenerateFixtures(brackets.GenerateFixturesParams{
		TournamentID: t.ID,
		Teams:        teams,
		Options:      t.MatchOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("%s generator failed for tournament %s: %w", gen.GetName(), t.ID, err)
	}
	return fixtures, nil
}

func (s *tournamentService) saveFixtures(ctx context.Context, fixtures []*models.Match) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(fixtureWriteLimit)
	for _, m := range fixtures {
		g.Go(func() error {
			return s.matchRepo.Create(gCtx, m)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to save fixtures: %w", err)
	}
	return nil
}

func (s *tournamentService) deleteMatches(ctx context.Context, matches []*models.Match) (int, error) {
	var deleted atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(fixtureWriteLimit)
	for _, m := range matches {
		g.Go(func() error {
			if err := s.matchRepo.DeleteIfVersion(gCtx, m.ID, m.Version); err != nil {
				return err
			}
			deleted.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(deleted.Load()), fmt.Errorf("failed to remove old fixtures: %w", err)
	}
	return int(deleted.Load()), nil
}
