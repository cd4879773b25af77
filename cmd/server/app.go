package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/empowerment-backend/internal/auth"
	"github.com/AnshRaj112/empowerment-backend/internal/calendar"
	"github.com/AnshRaj112/empowerment-backend/internal/config"
	"github.com/AnshRaj112/empowerment-backend/internal/database"
	"github.com/AnshRaj112/empowerment-backend/internal/filestore"
	"github.com/AnshRaj112/empowerment-backend/internal/handlers"
	"github.com/AnshRaj112/empowerment-backend/internal/metrics"
	"github.com/AnshRaj112/empowerment-backend/internal/ratelimit"
	"github.com/AnshRaj112/empowerment-backend/internal/realtime"
	"github.com/AnshRaj112/empowerment-backend/internal/routes"
	"github.com/AnshRaj112/empowerment-backend/internal/services"
	"github.com/AnshRaj112/empowerment-backend/internal/store"
	"github.com/AnshRaj112/empowerment-backend/internal/store/memory"
	mongostore "github.com/AnshRaj112/empowerment-backend/internal/store/mongo"
	"github.com/AnshRaj112/empowerment-backend/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	logger  *slog.Logger
	server  *http.Server
	store   store.Store
	redis   *redis.Client
	hub     *realtime.Hub
	safety  *services.SafetyService
	limiter *ratelimit.MemoryLimiter // nil when Redis backs the limiter
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	m := metrics.New()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = st
	logger.Info("storage ready", "backend", cfg.StorageBackend)

	// A typed nil *redis.Client would make the hub think Redis is there.
	var rdb redis.UniversalClient
	var limiter ratelimit.Limiter
	if cfg.RedisURI != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			a.close()
			return nil, err
		}
		logger.Info("connected to Redis")
		a.redis = client
		rdb = client
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitWindow, cfg.RateLimitMax)
	} else {
		logger.Warn("REDIS_URI not set; rate limits and realtime delivery are per instance")
		a.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
		limiter = a.limiter
	}

	files, err := openFiles(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	cal, err := openCalendar(cfg, a.redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if cal == nil {
		logger.Warn("Google Calendar is not configured")
	}

	a.hub = realtime.NewHub(rdb, logger, m)
	a.safety = services.NewSafetyService(st, a.hub, cfg.SafetyTimer, cfg.SOSPhone, logger, m)

	h := handlers.New(handlers.Deps{
		Records:   services.NewRecordService(st, files, logger, m),
		Profiles:  services.NewProfileService(st),
		Safety:    a.safety,
		Family:    services.NewFamilyService(st),
		Calendar:  cal,
		Hub:       a.hub,
		Verifier:  auth.NewFirebaseVerifier(cfg.FirebaseProjectID, auth.WithCertsURL(cfg.FirebaseCertsURL)),
		Logger:    logger,
		Metrics:   m,
		ClientURL: cfg.ClientURL,
	})

	a.server = &http.Server{
		Addr: ":" + cfg.Port,
		Handler: routes.New(h, routes.Options{
			ClientURL: cfg.ClientURL,
			Limiter:   limiter,
			Logger:    logger,
			Metrics:   m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to MongoDB", "database", db.Name())
		st := mongostore.New(client, db)
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return st, nil
	default:
		db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to PostgreSQL")
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("PostgreSQL migrations applied")
		return postgres.New(db), nil
	}
}

func openFiles(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	switch cfg.FileStorage {
	case config.FileStorageS3:
		return filestore.NewS3(ctx, filestore.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	case config.FileStorageCloudinary, "":
		// Cloudinary is picked up whenever its credentials are present.
		if !cfg.CloudinaryEnabled() {
			return filestore.Disabled{}, nil
		}
		return filestore.NewCloudinary(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	default:
		return filestore.Disabled{}, nil
	}
}

func openCalendar(cfg *config.Config, rdb *redis.Client) (*calendar.Service, error) {
	if !cfg.CalendarEnabled() {
		return nil, nil
	}
	key, err := cfg.CalendarKey()
	if err != nil {
		return nil, err
	}
	sealer, err := calendar.NewSealer(key)
	if err != nil {
		return nil, err
	}

	var states calendar.StateStore = calendar.NewMemoryStateStore()
	var tokens calendar.TokenStore = calendar.NewMemoryTokenStore(sealer)
	if rdb != nil {
		states = calendar.NewRedisStateStore(rdb)
		tokens = calendar.NewRedisTokenStore(rdb, sealer)
	}
	return calendar.New(calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, states, tokens), nil
}

// run serves until ctx is cancelled or a component fails, then drains
// in-flight requests.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.safety.Timers().Run(ctx) })
	if a.limiter != nil {
		g.Go(func() error { return a.limiter.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}
