// Command query serves the position and statistics API, including the upload endpoints.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hbgk/gkpulse/app/query"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := query.Initialize(ctx)
	if err := query.NewServer(app); err != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(err))
	}
	app.Logger.Info("Query API ready",
		zap.String("backend", app.Store.Backend()),
		zap.Bool("redis", app.RedisClient != nil))

	app.Start(ctx)
}
