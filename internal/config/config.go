package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config carries everything the server needs at startup. Values come from
// a yaml file (palmpipe.yaml in the working directory or /etc/palmpipe),
// PALMPIPE_* environment variables, or the defaults below, in that order
// of precedence.
type Config struct {
	ListenAddr string
	StorageDir string
	DBPath     string

	// EngineURL points at the hand landmark inference sidecar.
	EngineURL string
	NumHands  int

	// RemoteURL is the companion recording server whose recording flag is
	// mirrored best-effort. Empty disables mirroring entirely.
	RemoteURL string

	LogLevel string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen.addr", ":8080")
	v.SetDefault("storage.dir", "./recordings")
	v.SetDefault("db.path", "./palmpipe.db")
	v.SetDefault("engine.url", "http://localhost:9090")
	v.SetDefault("engine.hands", 2)
	v.SetDefault("remote.url", "")
	v.SetDefault("log.level", "info")

	v.AutomaticEnv()
	v.SetEnvPrefix("PALMPIPE")
	v.BindEnv("listen.addr", "PALMPIPE_LISTEN_ADDR")
	v.BindEnv("storage.dir", "PALMPIPE_STORAGE_DIR")
	v.BindEnv("db.path", "PALMPIPE_DB_PATH")
	v.BindEnv("engine.url", "PALMPIPE_ENGINE_URL")
	v.BindEnv("engine.hands", "PALMPIPE_ENGINE_HANDS")
	v.BindEnv("remote.url", "PALMPIPE_REMOTE_URL")
	v.BindEnv("log.level", "PALMPIPE_LOG_LEVEL")

	v.SetConfigName("palmpipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/palmpipe")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr: v.GetString("listen.addr"),
		StorageDir: v.GetString("storage.dir"),
		DBPath:     v.GetString("db.path"),
		EngineURL:  v.GetString("engine.url"),
		NumHands:   v.GetInt("engine.hands"),
		RemoteURL:  v.GetString("remote.url"),
		LogLevel:   v.GetString("log.level"),
	}

	if cfg.NumHands < 1 || cfg.NumHands > 2 {
		return nil, fmt.Errorf("engine.hands must be 1 or 2, got %d", cfg.NumHands)
	}

	return cfg, nil
}
