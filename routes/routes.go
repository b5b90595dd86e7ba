package routes

import (
	"github.com/calvinlm/MatchPoint-Prototype-sub000/handlers"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/middleware"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	queueHandler *handlers.QueueHandler,
	matchHandler *handlers.MatchHandler,
	standingsHandler *handlers.StandingsHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/login", authHandler.LoginHandler)

	// Публичные чтения: киоски и табло работают без токена.
	router.Get("/tournaments/{tournamentID}/queue", queueHandler.ListQueueHandler)
	router.Get("/matches/{matchID}", matchHandler.GetMatchHandler)
	router.Get("/brackets/{bracketID}/standings", standingsHandler.GetStandingsHandler)
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	// Мутации — только для персонала.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize(models.RoleAdmin, models.RoleQueueManager, models.RoleScorekeeper))

		r.Post("/tournaments/{tournamentID}/queue", queueHandler.EnqueueHandler)
		r.Post("/tournaments/{tournamentID}/queue/reorder", queueHandler.ReorderHandler)
		r.Post("/queue/{queueItemID}/action", queueHandler.ActionHandler)
		r.Post("/matches/{matchID}/score", matchHandler.SubmitScoreHandler)
		r.Post("/brackets/{bracketID}/standings/recompute", standingsHandler.RecomputeStandingsHandler)
	})

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
