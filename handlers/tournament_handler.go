package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
}

func NewTournamentHandler(ts services.TournamentService, ms services.MatchService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		matchService:      ms,
	}
}

type addTeamRequest struct {
	TeamID string `json:"team_id"`
}

type assignSlotRequest struct {
	Side   models.TeamSide `json:"side"`
	TeamID string          `json:"team_id"`
}

// CreateHandler handles POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /tournaments?phase=upcoming|ongoing|completed
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var phase *models.Phase
	if raw := r.URL.Query().Get("phase"); raw != "" {
		p := models.Phase(raw)
		switch p {
		case models.PhaseUpcoming, models.PhaseOngoing, models.PhaseCompleted:
			phase = &p
		default:
			badRequestResponse(w, r, fmt.Errorf("invalid phase query parameter %q", raw))
			return
		}
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), phase)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	details, err := h.tournamentService.GetTournamentDetails(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, details, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddTeamHandler handles POST /tournaments/{tournamentID}/teams
func (h *TournamentHandler) AddTeamHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input addTeamRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.TeamID) == "" {
		failedValidationResponse(w, r, errors.New("team_id is required"))
		return
	}

	tournament, err := h.tournamentService.AddTeam(r.Context(), id, input.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateFixturesHandler handles POST /tournaments/{tournamentID}/fixtures
func (h *TournamentHandler) GenerateFixturesHandler(w http.ResponseWriter, r *http.Request) {
	h.respondMatches(w, r, http.StatusCreated, h.tournamentService.GenerateFixtures)
}

// RegenerateFixturesHandler handles POST /tournaments/{tournamentID}/fixtures/regenerate
func (h *TournamentHandler) RegenerateFixturesHandler(w http.ResponseWriter, r *http.Request) {
	h.respondMatches(w, r, http.StatusCreated, h.tournamentService.RegenerateFixtures)
}

// AdvanceKnockoutHandler handles POST /tournaments/{tournamentID}/knockout/advance
func (h *TournamentHandler) AdvanceKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	h.respondMatches(w, r, http.StatusCreated, h.tournamentService.AdvanceKnockout)
}

// AssignSlotHandler handles PUT /tournaments/{tournamentID}/knockout/matches/{matchID}/slot
func (h *TournamentHandler) AssignSlotHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input assignSlotRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.TeamID) == "" {
		failedValidationResponse(w, r, errors.New("team_id is required"))
		return
	}

	match, err := h.tournamentService.AssignKnockoutSlot(r.Context(), id, matchID, input.Side, input.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteHandler handles POST /tournaments/{tournamentID}/complete
func (h *TournamentHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CompleteTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StandingsHandler handles GET /tournaments/{tournamentID}/standings
func (h *TournamentHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	table, err := h.tournamentService.GetStandings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": table}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler handles GET /tournaments/{tournamentID}/matches?status=
func (h *TournamentHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := readStatusQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListTournamentMatches(r.Context(), id, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) respondMatches(w http.ResponseWriter, r *http.Request, status int, op func(ctx context.Context, id string) ([]*models.Match, error)) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := op(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, status, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
