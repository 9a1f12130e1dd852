package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/hexdraft/draft-server/internal/ws"
)

func SetupRoutes(api *API) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)

	r.Route("/api/v1/rooms", func(r chi.Router) {
		r.Post("/", api.CreateRoom)
		r.Route("/{roomID}", func(r chi.Router) {
			r.Post("/ready", api.Ready)
			r.Post("/start", api.Start)
			r.Post("/action", api.Action)
			r.Post("/team-name", api.TeamName)
			r.Get("/stream", ws.Handler(api.Registry, api.Logger))
		})
	})

	// Viewer pages live on a separate origin.
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}
