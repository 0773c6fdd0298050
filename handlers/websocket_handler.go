package handlers

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/volleyball-tournament/brackets"
	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/services"
)

const clientSendBuffer = 256

type WebSocketHandler struct {
	hub               *brackets.Hub
	matchService      services.MatchService
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty or
// contains "*".
func NewWebSocketHandler(hub *brackets.Hub, ms services.MatchService, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		matchService:      ms,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

// LiveFeed pushes match and tournament changes into hub rooms.
func LiveFeed(ms services.MatchService, ts services.TournamentService) brackets.Feed {
	return func(room string, publish func(string, any)) func() {
		kind, id, ok := brackets.ParseRoom(room)
		if !ok {
			return func() {}
		}
		if kind == "match" {
			return ms.WatchMatch(id, func(m *models.Match) {
				if m == nil {
					publish(brackets.MessageMatchDeleted, map[string]string{"id": id})
					return
				}
				publish(brackets.MessageMatchUpdated, m)
			})
		}
		return ts.WatchTournament(id, func(t *models.Tournament) {
			if t == nil {
				publish(brackets.MessageTournamentDeleted, map[string]string{"id": id})
				return
			}
			publish(brackets.MessageTournamentUpdated, t)
		})
	}
}

// ServeMatchWs handles GET /ws/matches/{matchID}
func (h *WebSocketHandler) ServeMatchWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.matchService.GetMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, brackets.MatchRoom(matchID))
}

// ServeTournamentWs handles GET /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeTournamentWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.tournamentService.GetTournament(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, brackets.TournamentRoom(tournamentID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("failed to upgrade websocket connection", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, clientSendBuffer),
		Room: room,
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
	h.logger.Info("websocket client connected", slog.String("room", room))
}
