package apiapp

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchapp/internal/transport/http/handlers"
	"github.com/ivankudzin/matchapp/internal/transport/http/ws"
)

type Dependencies struct {
	Users         *handlers.UsersHandler
	Likes         *handlers.LikesHandler
	Conversations *handlers.ConversationsHandler
	Health        *handlers.HealthHandler
	Events        *ws.EventsHandler
	Logger        *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	r.Get("/healthz", deps.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived websocket sessions stay outside the request timeout.
	r.Get("/users/{id}/events", deps.Events.Handle)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Post("/users", deps.Users.Create)
		r.Get("/users/{id}", deps.Users.Get)
		r.Put("/users/{id}", deps.Users.Update)

		r.Post("/users/{id}/like", deps.Likes.Submit)
		r.Get("/users/{id}/likes/incoming", deps.Likes.Incoming)
		r.Get("/users/{id}/matches", deps.Likes.Matches)

		r.Get("/users/{id}/conversations", deps.Conversations.ListForUser)
		r.Get("/conversations/{id}", deps.Conversations.Get)
		r.Post("/conversations/{id}/messages", deps.Conversations.SendMessage)
	})
}
