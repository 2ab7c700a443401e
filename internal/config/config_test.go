package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0:8765", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "data/questions.json", cfg.Catalog.Path)
	assert.Equal(t, 64, cfg.Lobby.SessionBuffer)
	assert.Equal(t, 30*time.Second, cfg.Lobby.SweepInterval)
	assert.False(t, cfg.TLSEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SESSION_BUFFER", "128")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("LOG_JSON", "true")

	cfg := Load()

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 128, cfg.Lobby.SessionBuffer)
	assert.Equal(t, time.Minute, cfg.Lobby.SweepInterval)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("SESSION_BUFFER", "lots")
	t.Setenv("SWEEP_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, 64, cfg.Lobby.SessionBuffer)
	assert.Equal(t, 30*time.Second, cfg.Lobby.SweepInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"cert without key", func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, true},
		{"key without cert", func(c *Config) { c.Server.TLSKeyFile = "key.pem" }, true},
		{"cert and key", func(c *Config) {
			c.Server.TLSCertFile = "cert.pem"
			c.Server.TLSKeyFile = "key.pem"
		}, false},
		{"empty catalog path", func(c *Config) { c.Catalog.Path = "" }, true},
		{"zero session buffer", func(c *Config) { c.Lobby.SessionBuffer = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTLSEnabled(t *testing.T) {
	cfg := Load()
	assert.False(t, cfg.TLSEnabled())

	cfg.Server.TLSCertFile = "cert.pem"
	cfg.Server.TLSKeyFile = "key.pem"
	assert.True(t, cfg.TLSEnabled())
}
