package handlers

import (
	"net/http"

	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type addPointRequest struct {
	Team models.TeamSide `json:"team"`
}

// CreateMatchHandler handles POST /matches
func (h *MatchHandler) CreateMatchHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler handles GET /matches?status=
func (h *MatchHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	status, err := readStatusQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetMatchHandler handles GET /matches/{matchID}
func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Match, error) {
		return h.matchService.GetMatch(r.Context(), id)
	})
}

// StartMatchHandler handles POST /matches/{matchID}/start
func (h *MatchHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Match, error) {
		return h.matchService.StartMatch(r.Context(), id)
	})
}

// AddPointHandler handles POST /matches/{matchID}/points
func (h *MatchHandler) AddPointHandler(w http.ResponseWriter, r *http.Request) {
	var input addPointRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.Match, error) {
		return h.matchService.AddPoint(r.Context(), id, input.Team)
	})
}

// UndoPointHandler handles POST /matches/{matchID}/undo
func (h *MatchHandler) UndoPointHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Match, error) {
		return h.matchService.UndoLastPoint(r.Context(), id)
	})
}

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, status int, op func(id string) (*models.Match, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := op(matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, status, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
