// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Playlist settings
	DefaultPlaylistURL string
	MACPortalURL       string // template with a single %s for the MAC address

	// Outbound fetch settings
	FetchTimeout time.Duration
	TLSInsecure  bool // process-wide: all TLS connections skip verification

	// Metadata settings
	TMDBAPIKey string
	CacheTTL   time.Duration

	// Resolver CLI settings
	LobsterPath       string
	AniCLIPath        string
	SubprocessTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	port := getEnvInt("PORT", 8787)
	return &Config{
		Port:               port,
		BaseURL:            getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:        getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		DefaultPlaylistURL: getEnvString("DEFAULT_PLAYLIST_URL", ""),
		MACPortalURL:       getEnvString("MAC_PORTAL_URL", ""),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		TLSInsecure:        getEnvBool("TLS_INSECURE", false),
		TMDBAPIKey:         os.Getenv("TMDB_API_KEY"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 60*time.Second),
		LobsterPath:        getEnvString("LOBSTER_PATH", "lobster"),
		AniCLIPath:         getEnvString("ANICLI_PATH", "ani-cli"),
		SubprocessTimeout:  getEnvDuration("SUBPROCESS_TIMEOUT", 60*time.Second),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
		LogJSON:            getEnvBool("LOG_JSON", false),
	}
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Plain integers are seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
