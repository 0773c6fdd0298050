package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volleyball-tournament/brackets"
	"github.com/Dosada05/volleyball-tournament/handlers"
	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/repositories"
	"github.com/Dosada05/volleyball-tournament/services"
	"github.com/Dosada05/volleyball-tournament/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewMemoryStore()

	teams := repositories.NewTeamRepository(s)
	players := repositories.NewPlayerRepository(s)
	tournaments := repositories.NewTournamentRepository(s)
	matches := repositories.NewMatchRepository(s)
	stats := repositories.NewTeamStatRepository(s)

	teamSvc := services.NewTeamService(teams, players, tournaments, services.DefaultWriteRetries, logger)
	matchSvc := services.NewMatchService(matches, teams, tournaments, stats, services.DefaultWriteRetries, logger)
	tournamentSvc := services.NewTournamentService(tournaments, teams, matches, stats, nil, services.DefaultWriteRetries, logger)

	hub := brackets.NewHub(handlers.LiveFeed(matchSvc, tournamentSvc), logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Teams:       handlers.NewTeamHandler(teamSvc),
		Tournaments: handlers.NewTournamentHandler(tournamentSvc, matchSvc),
		Matches:     handlers.NewMatchHandler(matchSvc),
		WebSocket:   handlers.NewWebSocketHandler(hub, matchSvc, tournamentSvc, nil, logger),
	}, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, wantsError := out.(*errorBody)
	if out != nil && (resp.StatusCode < 300 || wantsError) && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// callErr performs a request expected to fail and returns its status and code.
func callErr(t *testing.T, srv *httptest.Server, method, path string, body any) (int, string) {
	t.Helper()
	var e errorBody
	status := call(t, srv, method, path, body, &e)
	assert.NotEmpty(t, e.Error)
	return status, e.Code
}

type teamEnvelope struct {
	Team models.Team `json:"team"`
}

type matchEnvelope struct {
	Match models.Match `json:"match"`
}

type matchesEnvelope struct {
	Matches []models.Match `json:"matches"`
}

func createTeam(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	var env teamEnvelope
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/teams", map[string]string{"name": name}, &env))
	return env.Team.ID
}

func TestTournamentFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	spikers := createTeam(t, srv, "Spikers")
	blockers := createTeam(t, srv, "Blockers")

	now := time.Now().UTC()
	var created struct {
		Tournament models.Tournament `json:"tournament"`
	}
	status := call(t, srv, http.MethodPost, "/tournaments", map[string]any{
		"name":           "Summer Cup",
		"format":         models.FormatRoundRobin,
		"start_date":     now.Add(-time.Hour),
		"end_date":       now.Add(48 * time.Hour),
		"team_ids":       []string{spikers, blockers},
		"total_sets":     1,
		"points_per_set": 3,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	tid := created.Tournament.ID

	var fixtures matchesEnvelope
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/tournaments/"+tid+"/fixtures", nil, &fixtures))
	require.Len(t, fixtures.Matches, 1)
	matchID := fixtures.Matches[0].ID

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/tournaments/"+tid+"/fixtures", nil, nil))

	var m matchEnvelope
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+matchID+"/start", nil, &m))
	assert.Equal(t, models.MatchStatusLive, m.Match.Status)

	for i := 0; i < 10 && m.Match.Status == models.MatchStatusLive; i++ {
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+matchID+"/points", map[string]string{"team": "A"}, &m))
	}
	require.Equal(t, models.MatchStatusFinished, m.Match.Status)

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/matches/"+matchID+"/points", map[string]string{"team": "A"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/matches/"+matchID+"/points", map[string]string{"team": "C"}, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/matches/"+matchID+"/undo", nil, nil))

	var table struct {
		Standings []models.TeamStat `json:"standings"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/tournaments/"+tid+"/standings", nil, &table))
	require.Len(t, table.Standings, 2)
	assert.Equal(t, fixtures.Matches[0].TeamAID, table.Standings[0].TeamID)
	assert.Equal(t, 2, table.Standings[0].Points)

	var finished matchesEnvelope
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/tournaments/"+tid+"/matches?status=finished", nil, &finished))
	assert.Len(t, finished.Matches, 1)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/tournaments/"+tid+"/matches?status=paused", nil, nil))

	var details services.TournamentDetails
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/tournaments/"+tid, nil, &details))
	assert.Len(t, details.Teams, 2)
	assert.Len(t, details.Matches, 1)

	var listed struct {
		Tournaments []models.Tournament `json:"tournaments"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/tournaments?phase=ongoing", nil, &listed))
	assert.Len(t, listed.Tournaments, 1)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/tournaments?phase=soon", nil, nil))

	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/tournaments/"+tid+"/complete", nil, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/tournaments/"+tid+"/complete", nil, nil))
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)

	status, code := callErr(t, srv, http.MethodGet, "/matches/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", code)
	status, code = callErr(t, srv, http.MethodGet, "/teams/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", code)
	status, code = callErr(t, srv, http.MethodPost, "/teams", map[string]string{"name": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", code)
	status, code = callErr(t, srv, http.MethodPost, "/teams", map[string]string{"nickname": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", code)

	a := createTeam(t, srv, "Spikers")
	b := createTeam(t, srv, "Blockers")
	assert.Equal(t, http.StatusUnprocessableEntity, call(t, srv, http.MethodPost, "/matches", map[string]string{"team_a_id": a, "team_b_id": a}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/matches", map[string]string{"team_a_id": a, "team_b_id": "ghost"}, nil))

	var m matchEnvelope
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/matches", map[string]any{
		"team_a_id": a, "team_b_id": b, "total_sets": 1, "points_per_set": 3,
	}, &m))
	matchID := m.Match.ID
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+matchID+"/start", nil, &m))

	status, code = callErr(t, srv, http.MethodPost, "/matches/"+matchID+"/undo", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no_op", code)

	for i := 0; i < 10 && m.Match.Status == models.MatchStatusLive; i++ {
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+matchID+"/points", map[string]string{"team": "B"}, &m))
	}
	require.Equal(t, models.MatchStatusFinished, m.Match.Status)

	status, code = callErr(t, srv, http.MethodPost, "/matches/"+matchID+"/points", map[string]string{"team": "A"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_transition", code)
}

func TestListingsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	a := createTeam(t, srv, "Spikers")
	b := createTeam(t, srv, "Aces")

	var teams struct {
		Teams []models.Team `json:"teams"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/teams", nil, &teams))
	require.Len(t, teams.Teams, 2)
	assert.Equal(t, "Aces", teams.Teams[0].Name)

	var first, second matchEnvelope
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/matches", map[string]string{"team_a_id": a, "team_b_id": b}, &first))
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/matches", map[string]string{"team_a_id": b, "team_b_id": a}, &second))
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+second.Match.ID+"/start", nil, nil))

	var all matchesEnvelope
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/matches", nil, &all))
	assert.Len(t, all.Matches, 2)

	var live matchesEnvelope
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/matches?status=live", nil, &live))
	require.Len(t, live.Matches, 1)
	assert.Equal(t, second.Match.ID, live.Matches[0].ID)

	status, code := callErr(t, srv, http.MethodGet, "/matches?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", code)
}

func TestRosterOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	teamID := createTeam(t, srv, "Spikers")

	var player struct {
		Player models.Player `json:"player"`
	}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/players", map[string]string{"name": "Ana"}, &player))

	var env teamEnvelope
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/teams/"+teamID+"/players", map[string]string{"player_id": player.Player.ID}, &env))
	assert.Equal(t, []string{player.Player.ID}, env.Team.PlayerIDs)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodDelete, "/teams/"+teamID+"/players/"+player.Player.ID, nil, &env))
	assert.Empty(t, env.Team.PlayerIDs)

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodDelete, "/teams/"+teamID, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/teams/"+teamID, nil, nil))
}

func TestMatchFeedOverWebSocket(t *testing.T) {
	srv := newTestServer(t)
	a := createTeam(t, srv, "Spikers")
	b := createTeam(t, srv, "Blockers")

	var m matchEnvelope
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/matches", map[string]string{"team_a_id": a, "team_b_id": b}, &m))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/matches/" + m.Match.ID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	read := func() (string, models.Match) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type    string       `json:"type"`
			Payload models.Match `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		return msg.Type, msg.Payload
	}

	msgType, payload := read()
	assert.Equal(t, brackets.MessageMatchUpdated, msgType)
	assert.Equal(t, models.MatchStatusUpcoming, payload.Status)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/matches/"+m.Match.ID+"/start", nil, nil))
	msgType, payload = read()
	assert.Equal(t, brackets.MessageMatchUpdated, msgType)
	assert.Equal(t, models.MatchStatusLive, payload.Status)

	_, resp2, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/matches/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp2)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
