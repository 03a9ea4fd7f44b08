package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/recording", app.RecordingStatusHandler)
		r.Post("/recording/start", app.StartRecordingHandler)
		r.Post("/recording/stop", app.StopRecordingHandler)

		r.Get("/sessions", app.ListSessionsHandler)
		r.Get("/sessions/{id}/file", app.SessionFileHandler)
		r.Delete("/sessions/{id}", app.DeleteSessionHandler)

		r.Put("/config/hands", app.SetHandsHandler)
		r.Get("/stats", app.StatsHandler)
	})

	r.Get("/ws/ingest", app.IngestSocketHandler)
	r.Get("/ws/landmarks", app.LandmarksSocketHandler)

	return r
}
