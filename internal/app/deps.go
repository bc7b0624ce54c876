package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dateloop/backend/internal/auth"
	"github.com/dateloop/backend/internal/config"
	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/feed"
	"github.com/dateloop/backend/internal/handlers"
	"github.com/dateloop/backend/internal/messages"
	"github.com/dateloop/backend/internal/middleware"
	"github.com/dateloop/backend/internal/profiles"
	"github.com/dateloop/backend/internal/realtime"
	"github.com/dateloop/backend/internal/repositories"
	"github.com/dateloop/backend/internal/social"
	"github.com/dateloop/backend/internal/storage"
)

const (
	rateLimiterTTL = 10 * time.Minute
	// writeRateFactor scales the auth limits for ordinary write endpoints.
	writeRateFactor = 10
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup stops background workers and closes clients.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	logger := slog.Default()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return handlers.Dependencies{}, nil, errors.New("jwt secret must be configured")
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	var closers []func() error

	var (
		publisher  realtime.Publisher
		subscriber realtime.Subscriber
	)
	if cfg.Redis.Addr != "" {
		client, err := realtime.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			stopRelay()
			return handlers.Dependencies{}, nil, err
		}
		closers = append(closers, client.Close)

		redisBus := realtime.NewRedisBus(client, cfg.Redis.Channel, logger)
		go redisBus.Relay(relayCtx)
		publisher, subscriber = redisBus, redisBus
	} else {
		bus := realtime.NewBus(logger)
		publisher, subscriber = bus, bus
	}

	var assets profiles.AssetStorage
	if strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			stopRelay()
			closeAll(closers)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
		}
		assets = s3
	} else {
		logger.Warn("object storage not configured, avatar uploads are disabled")
	}

	dispatcher := realtime.NewDispatcher(realtime.DispatcherConfig{
		QueueSize:  cfg.Realtime.QueueSize,
		Workers:    cfg.Realtime.Workers,
		JobTimeout: cfg.Realtime.JobTimeout,
	}, logger)

	sessions := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool))
	now := func() time.Time { return time.Now().UTC() }

	deps := handlers.Dependencies{
		Users:    repositories.NewPostgresUserRepository(pool),
		Sessions: sessions,
		Verifier: sessions,
		Social: social.Service{
			Store:     repositories.NewPostgresFriendRepository(pool),
			Publisher: publisher,
			NowFunc:   now,
		},
		Feed: feed.Service{
			Store:     repositories.NewPostgresFeedRepository(pool),
			Publisher: publisher,
			NowFunc:   now,
		},
		Dates: dates.Service{
			Store:     repositories.NewPostgresDateRepository(pool),
			Publisher: publisher,
			NowFunc:   now,
		},
		Messages: messages.Service{
			Store:     repositories.NewPostgresMessageRepository(pool),
			Publisher: publisher,
			NowFunc:   now,
		},
		Profiles: profiles.Service{
			Store:     repositories.NewPostgresProfileRepository(pool),
			Assets:    assets,
			Publisher: publisher,
			NowFunc:   now,
		},
		Hub: realtime.NewHub(subscriber, dispatcher, logger),

		AuthLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimiterTTL),
		WriteLimiter: middleware.NewIPRateLimiter(
			cfg.RateLimit.Requests*writeRateFactor,
			cfg.RateLimit.Window,
			cfg.RateLimit.Burst*writeRateFactor,
			rateLimiterTTL,
		),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
		Ready: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
	}

	cleanup := func(ctx context.Context) error {
		stopRelay()
		err := dispatcher.Shutdown(ctx)
		return errors.Join(err, closeAll(closers))
	}

	return deps, cleanup, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
