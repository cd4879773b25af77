package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/empowerment-backend/internal/config"
	"github.com/AnshRaj112/empowerment-backend/internal/filestore"
	"github.com/AnshRaj112/empowerment-backend/internal/logging"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		Port:              "0",
		ClientURL:         "http://localhost:5173",
		FirebaseProjectID: "empower-test",
		FirebaseCertsURL:  "http://127.0.0.1:1/certs",
		StorageBackend:    config.BackendMemory,
		RateLimitWindow:   time.Minute,
		RateLimitMax:      10,
		SafetyTimer:       time.Hour,
	}
}

func TestBuildMemoryBackendServesHealth(t *testing.T) {
	a, err := build(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer a.close()

	assert.NotNil(t, a.limiter)
	assert.Nil(t, a.redis)

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/journals", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisURI = "redis://" + mr.Addr()

	var logs bytes.Buffer
	a, err := build(context.Background(), cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	defer a.close()

	assert.NotNil(t, a.redis)
	assert.Nil(t, a.limiter)
	assert.Contains(t, logs.String(), "connected to Redis")
	assert.Contains(t, logs.String(), "backend=memory")
}

func TestBuildRejectsUnreachableRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURI = "redis://127.0.0.1:1"

	_, err := build(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	a, err := build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	a.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestOpenFiles(t *testing.T) {
	cfg := memoryConfig()

	files, err := openFiles(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, filestore.Disabled{}, files)

	cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret = "demo", "key", "secret"
	files, err = openFiles(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &filestore.Cloudinary{}, files)

	cfg.FileStorage = config.FileStorageS3
	cfg.S3Endpoint = "https://ref.supabase.co/storage/v1/s3"
	cfg.S3Region, cfg.S3Bucket = "us-east-1", "documents"
	cfg.S3AccessKey, cfg.S3SecretKey = "AKID", "SECRET"
	files, err = openFiles(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &filestore.S3{}, files)
}

func TestOpenCalendar(t *testing.T) {
	cfg := memoryConfig()

	cal, err := openCalendar(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, cal)

	cfg.GoogleClientID, cfg.GoogleClientSecret = "client", "secret"
	cfg.GoogleRedirectURL = "http://localhost:3001/api/calendar/callback"
	cfg.CalendarTokenKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cal, err = openCalendar(cfg, rdb)
	require.NoError(t, err)
	require.NotNil(t, cal)

	u, err := cal.AuthURL(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Contains(t, u, "access_type=offline")
	assert.Len(t, mr.Keys(), 1)
}
