package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/api"
	"github.com/palmpipe/palmpipe/internal/config"
	"github.com/palmpipe/palmpipe/internal/coordinator"
	"github.com/palmpipe/palmpipe/internal/database"
	"github.com/palmpipe/palmpipe/internal/encoder"
	"github.com/palmpipe/palmpipe/internal/inference"
	"github.com/palmpipe/palmpipe/internal/pipeline"
	"github.com/palmpipe/palmpipe/internal/source"
	"github.com/palmpipe/palmpipe/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize storage")
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()
	sessionRepo := database.NewSessionRepository(db)

	// A dead engine is not fatal for the server: recording still works,
	// the scheduler just rejects every frame.
	var engine inference.Engine
	httpEngine, err := inference.NewHTTPEngine(cfg.EngineURL)
	if err != nil {
		logrus.WithError(err).Warn("inference engine unavailable, landmarks disabled")
	} else {
		engine = httpEngine
		defer httpEngine.Close()
	}
	scheduler := inference.NewScheduler(engine, cfg.NumHands)

	var remote coordinator.RemoteClient
	if cfg.RemoteURL != "" {
		remote = coordinator.NewHTTPRemote(cfg.RemoteURL)
	}

	recorder := encoder.NewRecorder()
	coord := coordinator.New(recorder, store, remote, sessionRepo)

	src := source.New()
	hub := api.NewHub()
	driver := pipeline.NewDriver(src, scheduler, recorder, hub.Broadcast)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	app := api.NewApp()
	app.Coordinator = coord
	app.Scheduler = scheduler
	app.Sessions = sessionRepo
	app.Storage = store
	app.Source = src
	app.Hub = hub

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewRouter(app),
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logrus.Info("shutting down")
		src.Close()
		cancel()
		server.Shutdown(context.Background())
	}()

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.ListenAddr,
		"storage": cfg.StorageDir,
		"db":      cfg.DBPath,
		"engine":  cfg.EngineURL,
		"remote":  cfg.RemoteURL,
	}).Info("server starting")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Fatal("server failed")
	}
}
