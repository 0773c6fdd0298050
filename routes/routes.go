package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/volleyball-tournament/handlers"
)

type Handlers struct {
	Teams       *handlers.TeamHandler
	Tournaments *handlers.TournamentHandler
	Matches     *handlers.MatchHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Post("/players", h.Teams.CreatePlayerHandler)

	router.Route("/teams", func(r chi.Router) {
		r.Post("/", h.Teams.CreateTeamHandler)
		r.Get("/", h.Teams.ListTeamsHandler)
		r.Route("/{teamID}", func(r chi.Router) {
			r.Get("/", h.Teams.GetTeamHandler)
			r.Delete("/", h.Teams.DeleteTeamHandler)
			r.Post("/players", h.Teams.AddPlayerHandler)
			r.Delete("/players/{playerID}", h.Teams.RemovePlayerHandler)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Post("/", h.Tournaments.CreateHandler)
		r.Get("/", h.Tournaments.ListHandler)
		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournaments.GetByIDHandler)
			r.Post("/teams", h.Tournaments.AddTeamHandler)
			r.Post("/fixtures", h.Tournaments.GenerateFixturesHandler)
			r.Post("/fixtures/regenerate", h.Tournaments.RegenerateFixturesHandler)
			r.Post("/knockout/advance", h.Tournaments.AdvanceKnockoutHandler)
			r.Put("/knockout/matches/{matchID}/slot", h.Tournaments.AssignSlotHandler)
			r.Post("/complete", h.Tournaments.CompleteHandler)
			r.Get("/standings", h.Tournaments.StandingsHandler)
			r.Get("/matches", h.Tournaments.ListMatchesHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Post("/", h.Matches.CreateMatchHandler)
		r.Get("/", h.Matches.ListMatchesHandler)
		r.Route("/{matchID}", func(r chi.Router) {
			r.Get("/", h.Matches.GetMatchHandler)
			r.Post("/start", h.Matches.StartMatchHandler)
			r.Post("/points", h.Matches.AddPointHandler)
			r.Post("/undo", h.Matches.UndoPointHandler)
		})
	})

	router.Route("/ws", func(r chi.Router) {
		r.Get("/matches/{matchID}", h.WebSocket.ServeMatchWs)
		r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeTournamentWs)
	})
}
