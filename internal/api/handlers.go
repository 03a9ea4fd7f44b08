package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/coordinator"
	"github.com/palmpipe/palmpipe/internal/encoder"
	"github.com/palmpipe/palmpipe/internal/inference"
	"github.com/palmpipe/palmpipe/internal/models"
	"github.com/palmpipe/palmpipe/internal/source"
	"github.com/palmpipe/palmpipe/internal/storage"
)

// Controller is the recording lifecycle surface the API exposes.
type Controller interface {
	Start(ctx context.Context, nameHint string) error
	Stop(ctx context.Context) (*encoder.Flushed, error)
	Status() coordinator.Status
}

// SessionIndex is the archived-session surface the API exposes.
type SessionIndex interface {
	GetSessionByID(id string) (*models.Session, error)
	ListSessions() ([]models.Session, error)
	DeleteSession(id string) error
}

type App struct {
	Coordinator Controller
	Scheduler   *inference.Scheduler
	Sessions    SessionIndex
	Storage     storage.Storage
	Source      *source.Source
	Hub         *Hub

	log *logrus.Entry
}

func NewApp() *App {
	return &App{log: logrus.WithField("component", "api")}
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type startRequest struct {
	NameHint string `json:"name_hint"`
}

func (app *App) StartRecordingHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	err := app.Coordinator.Start(r.Context(), req.NameHint)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, app.Coordinator.Status())
	case errors.Is(err, coordinator.ErrAlreadyRecording):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coordinator.ErrRemoteConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		app.logger().WithError(err).Error("failed to start recording")
		respondError(w, http.StatusInternalServerError, "failed to start recording")
	}
}

type stopResponse struct {
	SessionID  string `json:"session_id"`
	Filename   string `json:"filename"`
	StartedAt  string `json:"started_at"`
	FrameCount int    `json:"frame_count"`
	ChunkCount int    `json:"chunk_count"`
	Bytes      int64  `json:"bytes"`
	Failed     bool   `json:"failed"`
}

func (app *App) StopRecordingHandler(w http.ResponseWriter, r *http.Request) {
	flushed, err := app.Coordinator.Stop(r.Context())
	if err != nil {
		if errors.Is(err, coordinator.ErrNotRecording) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		app.logger().WithError(err).Error("failed to stop recording")
		if flushed == nil {
			respondError(w, http.StatusInternalServerError, "failed to stop recording")
			return
		}
		// The flush failed but the chunk accounting survived; report it
		// with the failure flag set.
	}
	respondJSON(w, http.StatusOK, stopResponse{
		SessionID:  flushed.SessionID,
		Filename:   flushed.Filename,
		StartedAt:  flushed.StartTime.Format("2006-01-02T15:04:05.000Z07:00"),
		FrameCount: flushed.FrameCount,
		ChunkCount: len(flushed.Chunks),
		Bytes:      flushed.Bytes,
		Failed:     flushed.Failed,
	})
}

func (app *App) RecordingStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, app.Coordinator.Status())
}

func (app *App) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.Sessions.ListSessions()
	if err != nil {
		app.logger().WithError(err).Error("failed to list sessions")
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (app *App) SessionFileHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := app.Sessions.GetSessionByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	file, err := app.Storage.OpenFile(sess.Filename)
	if err != nil {
		respondError(w, http.StatusNotFound, "recording file not found")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "video/webm")
	http.ServeContent(w, r, sess.Filename, sess.StartedAt, file)
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := app.Sessions.GetSessionByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := app.Storage.DeleteFile(sess.Filename); err != nil {
		app.logger().WithError(err).Warn("failed to delete recording file")
	}
	if err := app.Sessions.DeleteSession(id); err != nil {
		app.logger().WithError(err).Error("failed to delete session")
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type handsRequest struct {
	NumHands int `json:"num_hands"`
}

func (app *App) SetHandsHandler(w http.ResponseWriter, r *http.Request) {
	var req handsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := app.Scheduler.SetNumHands(r.Context(), req.NumHands)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]int{"num_hands": app.Scheduler.NumHands()})
	case errors.Is(err, inference.ErrInvalidHandCount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inference.ErrReconfiguring):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inference.ErrNotInitialized):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		app.logger().WithError(err).Error("failed to set hand count")
		respondError(w, http.StatusBadGateway, "failed to set hand count")
	}
}

type statsResponse struct {
	Source          source.Stats `json:"source"`
	EngineReady     bool         `json:"engine_ready"`
	ProcessingFrame bool         `json:"processing_frame"`
	ProcessingVideo bool         `json:"processing_video"`
	NumHands        int          `json:"num_hands"`
	OverlayClients  int          `json:"overlay_clients"`
}

func (app *App) StatsHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statsResponse{
		Source:          app.Source.Stats(),
		EngineReady:     app.Scheduler.Initialized(),
		ProcessingFrame: app.Scheduler.ProcessingFrame(),
		ProcessingVideo: app.Scheduler.ProcessingVideo(),
		NumHands:        app.Scheduler.NumHands(),
		OverlayClients:  app.Hub.ClientCount(),
	})
}

// IngestSocketHandler binds the connecting capture client as the live
// track. A new connection replaces the previous one.
func (app *App) IngestSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger().WithError(err).Warn("ingest upgrade failed")
		return
	}
	app.Source.StartProcessing(newWSTrack(conn))
}

// LandmarksSocketHandler subscribes an overlay client to live results.
func (app *App) LandmarksSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger().WithError(err).Warn("landmarks upgrade failed")
		return
	}
	client := &hubClient{conn: conn}
	app.Hub.add(client)

	// Reads only serve to detect the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				app.Hub.remove(client)
				return
			}
		}
	}()
}

func (app *App) logger() *logrus.Entry {
	if app.log == nil {
		app.log = logrus.WithField("component", "api")
	}
	return app.log
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
