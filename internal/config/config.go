// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Catalog CatalogConfig
	Lobby   LobbyConfig
}

// ServerConfig covers the listener and the HTTP surface.
type ServerConfig struct {
	Host        string
	Port        string
	TLSCertFile string
	TLSKeyFile  string
	CORSOrigins []string
	GinMode     string
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string
	JSON  bool
}

// CatalogConfig points at the question dataset.
type CatalogConfig struct {
	Path string
}

// LobbyConfig tunes the lobby runtime.
type LobbyConfig struct {
	SessionBuffer int
	SweepInterval time.Duration
	CreateGrace   time.Duration
	PlaybackURL   string
}

// Load reads the configuration from the environment, applying defaults for
// everything optional.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnv("PORT", "8765"),
			TLSCertFile: getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
			GinMode:     getEnv("GIN_MODE", "release"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getBoolEnv("LOG_JSON", false),
		},
		Catalog: CatalogConfig{
			Path: getEnv("QUESTION_FILE", "data/questions.json"),
		},
		Lobby: LobbyConfig{
			SessionBuffer: getIntEnv("SESSION_BUFFER", 64),
			SweepInterval: getDurationEnv("SWEEP_INTERVAL", 30*time.Second),
			CreateGrace:   getDurationEnv("CREATE_GRACE", 2*time.Minute),
			PlaybackURL:   getEnv("PLAYBACK_URL", ""),
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("QUESTION_FILE must not be empty")
	}
	cert, key := c.Server.TLSCertFile, c.Server.TLSKeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.Lobby.SessionBuffer <= 0 {
		return fmt.Errorf("SESSION_BUFFER must be positive")
	}
	return nil
}

// TLSEnabled reports whether the listener should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCertFile != "" && c.Server.TLSKeyFile != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
