package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration, read once at startup from the
// environment and passed by value to services.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// DataDir is the root directory for all persisted state
	// (JSON stores, the sqlite database, metadata cache, logs).
	DataDir string

	// TMDBAPIKey authenticates requests against the metadata provider.
	TMDBAPIKey string

	// Language is the preferred metadata language (e.g. "en-US").
	Language string

	// CacheTTLHours controls how long discover pages and certifications
	// are cached on disk.
	CacheTTLHours int

	// SessionDuration is the lifetime of login sessions.
	SessionDuration time.Duration

	// DevMode enables verbose logging (corrupt-state reports and the like).
	DevMode bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() Config {
	cfg := Config{
		ListenAddr:      envOr("REELPARTY_ADDR", ":8585"),
		DataDir:         envOr("REELPARTY_DATA_DIR", "./data"),
		TMDBAPIKey:      os.Getenv("REELPARTY_TMDB_API_KEY"),
		Language:        envOr("REELPARTY_LANGUAGE", "en-US"),
		CacheTTLHours:   envIntOr("REELPARTY_CACHE_TTL_HOURS", 24),
		SessionDuration: 30 * 24 * time.Hour,
		DevMode:         envBool("REELPARTY_DEV"),
	}
	if hours := envIntOr("REELPARTY_SESSION_HOURS", 0); hours > 0 {
		cfg.SessionDuration = time.Duration(hours) * time.Hour
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
