package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "http://localhost:5173", cfg.ClientURL)
	assert.Equal(t, BackendPostgres, cfg.StorageBackend)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Hour, cfg.SafetyTimer)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("ENV", "Production")
	t.Setenv("CLIENT_URL", "https://app.example.com/")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("STORAGE_BACKEND", "MEMORY")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://app.example.com", cfg.ClientURL)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
}

func TestValidate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing project", func(c *Config) { c.FirebaseProjectID = "" }, "FIREBASE_PROJECT_ID"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "sqlite" }, "STORAGE_BACKEND"},
		{"incomplete s3", func(c *Config) { c.FileStorage = FileStorageS3 }, "FILE_STORAGE=s3"},
		{"calendar without key", func(c *Config) {
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
		}, "CALENDAR_TOKEN_KEY"},
		{"calendar short key", func(c *Config) {
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
			c.CalendarTokenKey = base64.StdEncoding.EncodeToString([]byte("short"))
		}, "32 bytes"},
		{"calendar ok", func(c *Config) {
			c.GoogleClientID, c.GoogleClientSecret = "id", "secret"
			c.CalendarTokenKey = key
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				FirebaseProjectID: "demo",
				StorageBackend:    BackendMemory,
				RateLimitWindow:   time.Minute,
				RateLimitMax:      1,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
