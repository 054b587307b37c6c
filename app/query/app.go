package query

import (
	"context"

	"github.com/hbgk/gkpulse/app/query/types"
	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/logging"
	"github.com/hbgk/gkpulse/pkg/redis"
	"github.com/hbgk/gkpulse/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("query")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := db.NewStore(ctx, logger, "query")
	if err != nil {
		logger.Fatal("Unable to initialize snapshot store", zap.Error(err))
	}

	// Redis carries ingest events between processes (optional)
	var redisClient *redis.Client
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - cache purges from other processes will be missed",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for ingest events")
		}
	} else {
		logger.Info("Redis disabled - only local uploads purge the response cache")
	}

	app := &types.App{
		Store:          store,
		Engine:         analytics.NewEngine(store, logger),
		Cache:          types.NewResponseCache(utils.EnvInt("CACHE_MAX_ENTRIES", types.DefaultCacheEntries)),
		RedisClient:    redisClient,
		MaxUploadBytes: utils.EnvInt64("MAX_UPLOAD_MB", 20) << 20,
		Logger:         logger,
	}

	notifiers := ingest.Notifiers{ingest.NotifierFunc(app.PurgeOnIngest)}
	if redisClient != nil {
		notifiers = append(notifiers, redis.NewNotifier(redisClient))
	}
	app.Pipeline = ingest.New(store, notifiers, logger)

	return app
}
