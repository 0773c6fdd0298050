package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/store"
)

var (
	ErrTeamNotFound   = fmt.Errorf("%w: team", models.ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("%w: player", models.ErrNotFound)
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id string) (*models.Team, error)
	// List returns every team ordered by name.
	List(ctx context.Context) ([]*models.Team, error)
	// Update is guarded by team.Version, see MatchRepository.Update.
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id string) error
}

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id string) (*models.Player, error)
	// Update is guarded by player.Version.
	Update(ctx context.Context, player *models.Player) error
	ListByTeam(ctx context.Context, teamID string) ([]*models.Player, error)
}

type documentTeamRepository struct {
	store store.DocumentStore
	now   func() time.Time
}

func NewTeamRepository(s store.DocumentStore) TeamRepository {
	return &documentTeamRepository{store: s, now: time.Now}
}

func (r *documentTeamRepository) Create(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = newID()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = r.now().UTC()
	}
	if team.PlayerIDs == nil {
		team.PlayerIDs = []string{}
	}
	fields, err := encodeTeam(team)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, teamsCollection, team.ID, fields, 0)
	if err != nil {
		return fmt.Errorf("failed to create team %s: %w", team.ID, err)
	}
	team.Version = rec.Version
	return nil
}

func (r *documentTeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	rec, err := r.store.Get(ctx, teamsCollection, id)
	if err != nil {
		return nil, notFound(err, ErrTeamNotFound)
	}
	return decodeTeam(rec)
}

func (r *documentTeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	recs, err := r.store.Query(ctx, teamsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	teams := make([]*models.Team, 0, len(recs))
	for _, rec := range recs {
		team, err := decodeTeam(rec)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return strings.ToLower(teams[i].Name) < strings.ToLower(teams[j].Name)
	})
	return teams, nil
}

func (r *documentTeamRepository) Update(ctx context.Context, team *models.Team) error {
	fields, err := encodeTeam(team)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, teamsCollection, team.ID, fields, team.Version)
	if err != nil {
		return fmt.Errorf("failed to update team %s: %w", team.ID, err)
	}
	team.Version = rec.Version
	return nil
}

func (r *documentTeamRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, teamsCollection, id)
}

// encodeTeam leaves out the expanded roster, which is never stored.
func encodeTeam(team *models.Team) (map[string]any, error) {
	fields, err := toFields(team, "captain_id", "owner_id")
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	delete(fields, "players")
	return fields, nil
}

func decodeTeam(rec *store.Record) (*models.Team, error) {
	team := &models.Team{}
	if err := fromFields(rec, team); err != nil {
		return nil, err
	}
	team.ID = rec.ID
	team.Version = rec.Version
	if team.PlayerIDs == nil {
		team.PlayerIDs = []string{}
	}
	return team, nil
}

type documentPlayerRepository struct {
	store store.DocumentStore
	now   func() time.Time
}

func NewPlayerRepository(s store.DocumentStore) PlayerRepository {
	return &documentPlayerRepository{store: s, now: time.Now}
}

func (r *documentPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	if player.ID == "" {
		player.ID = newID()
	}
	if player.CreatedAt.IsZero() {
		player.CreatedAt = r.now().UTC()
	}
	fields, err := encodePlayer(player)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, playersCollection, player.ID, fields, 0)
	if err != nil {
		return fmt.Errorf("failed to create player %s: %w", player.ID, err)
	}
	player.Version = rec.Version
	return nil
}

func (r *documentPlayerRepository) GetByID(ctx context.Context, id string) (*models.Player, error) {
	rec, err := r.store.Get(ctx, playersCollection, id)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	return decodePlayer(rec)
}

func (r *documentPlayerRepository) Update(ctx context.Context, player *models.Player) error {
	fields, err := encodePlayer(player)
	if err != nil {
		return err
	}
	rec, err := r.store.PutIfVersion(ctx, playersCollection, player.ID, fields, player.Version)
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", player.ID, err)
	}
	player.Version = rec.Version
	return nil
}

func (r *documentPlayerRepository) ListByTeam(ctx context.Context, teamID string) ([]*models.Player, error) {
	recs, err := r.store.Query(ctx, playersCollection, store.Where("team_id", store.OpEq, teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to list players of team %s: %w", teamID, err)
	}
	players := make([]*models.Player, 0, len(recs))
	for _, rec := range recs {
		p, err := decodePlayer(rec)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

func encodePlayer(player *models.Player) (map[string]any, error) {
	fields, err := toFields(player, "team_id", "position")
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}

func decodePlayer(rec *store.Record) (*models.Player, error) {
	p := &models.Player{}
	if err := fromFields(rec, p); err != nil {
		return nil, err
	}
	p.ID = rec.ID
	p.Version = rec.Version
	return p, nil
}
