package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/redis"
	"go.uber.org/zap"
)

type App struct {
	Store    db.Store
	Engine   *analytics.Engine
	Pipeline *ingest.Pipeline
	// Cache holds encoded GET responses. Purged after every ingest.
	Cache *ResponseCache
	// RedisClient is nil when Redis is disabled.
	RedisClient *redis.Client
	// MaxUploadBytes bounds multipart upload bodies.
	MaxUploadBytes int64
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// PurgeCache drops every cached response.
func (a *App) PurgeCache() {
	if n := a.Cache.Purge(); n > 0 {
		a.Logger.Debug("Response cache purged", zap.Int("entries", n))
	}
}

// PurgeOnIngest is an ingest.Notifier that clears the cache for batches committed in
// this process.
func (a *App) PurgeOnIngest(_ context.Context, _ ingest.Event) error {
	a.PurgeCache()
	return nil
}

// WatchIngest tails the ingest stream and purges the cache whenever another process
// (crawler, CLI) commits a batch. Blocks until ctx is done.
func (a *App) WatchIngest(ctx context.Context) {
	if a.RedisClient == nil {
		return
	}
	consumer, err := redis.NewStreamConsumer(a.RedisClient, redis.StreamConsumerConfig{
		Stream: redis.IngestStream,
		LastID: "$",
		Logger: a.Logger,
	})
	if err != nil {
		a.Logger.Error("Unable to create ingest stream consumer", zap.Error(err))
		return
	}
	err = consumer.Run(ctx, func(ctx context.Context, msg redis.Message) error {
		ev, err := redis.DecodeEvent(msg)
		if err != nil {
			return err
		}
		a.Logger.Info("Ingest event received",
			zap.String("kind", string(ev.Kind)),
			zap.String("date", ev.Date),
			zap.Int("records", ev.Records))
		a.PurgeCache()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Warn("Ingest stream consumer stopped", zap.Error(err))
	}
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	go a.WatchIngest(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
