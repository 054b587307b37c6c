package crawler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/export"
	"github.com/hbgk/gkpulse/pkg/fetch"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/logging"
	"github.com/hbgk/gkpulse/pkg/redis"
	"github.com/hbgk/gkpulse/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCronSpec crawls every two hours, on the hour.
const DefaultCronSpec = "0 0 */2 * * *"

// App runs the Crawler on a cron schedule and exposes liveness and readiness probes.
type App struct {
	Store   db.Store
	Crawler *Crawler

	// RedisClient is nil when Redis is disabled.
	RedisClient *redis.Client

	// Cron is the scheduler that triggers crawls at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string
	// RunTimeout bounds a single crawl.
	RunTimeout time.Duration

	// last holds the most recent crawl outcome for /status.
	last atomic.Pointer[Status]

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the probes.
	Server *http.Server
}

// Status is the outcome of the most recent crawl.
type Status struct {
	Result Result `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Options wires a Crawler from explicit dependencies.
type Options struct {
	Store    db.Store
	Notifier ingest.Notifier
	Logger   *zap.Logger
}

// NewCrawler builds a crawler reading CRAWL_URL, CRAWL_RPS, DATA_DIR, EXPORT_DIR and
// EXPORT_WORKERS from the environment.
func NewCrawler(o Options) *Crawler {
	dataDir := utils.Env("DATA_DIR", "data")
	return &Crawler{
		ListURL:   utils.Env("CRAWL_URL", DefaultListURL),
		DailyDir:  filepath.Join(dataDir, "daily"),
		ExportDir: utils.Env("EXPORT_DIR", filepath.Join(dataDir, "export")),
		Fetcher: fetch.New(fetch.Opts{
			RPS:    utils.EnvInt("CRAWL_RPS", 1),
			Logger: o.Logger,
		}),
		Dates:    o.Store,
		Pipeline: ingest.New(o.Store, o.Notifier, o.Logger),
		Exporter: export.New(analytics.NewEngine(o.Store, o.Logger), o.Logger, utils.EnvInt("EXPORT_WORKERS", export.DefaultWorkers)),
		Logger:   o.Logger,
	}
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New("crawler")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := db.NewStore(ctx, logger, "crawler")
	if err != nil {
		logger.Fatal("Unable to initialize snapshot store", zap.Error(err))
	}

	var (
		redisClient *redis.Client
		notifier    ingest.Notifier
	)
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - ingest events will not be published", zap.Error(err))
			redisClient = nil
		} else {
			notifier = redis.NewNotifier(redisClient)
		}
	}

	app := &App{
		Store:       store,
		Crawler:     NewCrawler(Options{Store: store, Notifier: notifier, Logger: logger}),
		RedisClient: redisClient,
		CronSpec:    utils.Env("CRAWL_CRON", DefaultCronSpec),
		RunTimeout:  utils.EnvDuration("CRAWL_TIMEOUT", 5*time.Minute),
		Logger:      logger,
	}

	if err := app.SetupScheduler(ctx, &cronLogger{logger.Sugar()}, app.CronSpec); err != nil {
		return nil, err
	}

	return app, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")
	a.Server = &http.Server{Addr: addr, Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second}
}

// Router serves /healthz, /readyz and /status.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Ready(r.Context()) {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")
	r.Handle("/status", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		st := a.last.Load()
		if st == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(st)
	})).Methods("GET")

	return r
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		a.CrawlOnce(ctx)
	})
	return err
}

// CrawlOnce runs one bounded crawl and records its outcome.
func (a *App) CrawlOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, a.RunTimeout)
	defer cancel()

	res, err := a.Crawler.Run(rctx)
	st := &Status{Result: res}
	if err != nil {
		st.Error = err.Error()
		if errors.Is(err, context.Canceled) {
			return
		}
		a.Logger.Error("Crawl failed", zap.Error(err))
	} else {
		a.Logger.Info("Crawl finished",
			zap.String("outcome", string(res.Outcome)),
			zap.String("date", res.Report.Date),
			zap.Duration("duration", res.Duration))
	}
	a.last.Store(st)
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler and waits for a running crawl.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Ready reports whether the store answers.
func (a *App) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.Store.Ping(ctx) == nil
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Probe server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("shutting down…")
	a.StopCron()
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
