package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/config"
	"github.com/palmpipe/palmpipe/internal/database"
	"github.com/palmpipe/palmpipe/internal/inference"
)

// reprocess reanalyzes a finished recording through the inference engine's
// bulk mode and prints the detected hand poses as JSON.
func main() {
	var sessionID = flag.String("id", "", "Session ID to reprocess")
	var frameCount = flag.Int("frames", 16, "Number of frames to sample from the clip")
	flag.Parse()

	if *sessionID == "" {
		logrus.Fatal("Please provide a session ID with -id")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	sess, err := database.NewSessionRepository(db).GetSessionByID(*sessionID)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load session")
	}

	engine, err := inference.NewHTTPEngine(cfg.EngineURL)
	if err != nil {
		logrus.WithError(err).Fatal("inference engine unavailable")
	}
	defer engine.Close()
	scheduler := inference.NewScheduler(engine, cfg.NumHands)

	extractor, err := inference.NewClipExtractor()
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize frame extraction")
	}
	defer extractor.Cleanup()

	clipPath := filepath.Join(cfg.StorageDir, sess.Filename)
	frames, err := extractor.ExtractFrames(clipPath, *frameCount)
	if err != nil {
		logrus.WithError(err).Fatal("failed to extract frames")
	}

	fmt.Printf("Reprocessing %s (%d frames sampled)\n", sess.Filename, len(frames))

	results, err := scheduler.ProcessClip(context.Background(), frames)
	if err != nil {
		logrus.WithError(err).Fatal("clip reprocessing failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i, res := range results {
		if res == nil {
			continue
		}
		fmt.Printf("frame %d: %d hand(s)\n", i, len(res.Hands))
		if err := enc.Encode(res); err != nil {
			logrus.WithError(err).Fatal("failed to print result")
		}
	}
}
