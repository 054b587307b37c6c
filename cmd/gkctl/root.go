package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hbgk/gkpulse/pkg/db"
	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/hbgk/gkpulse/pkg/logging"
	"github.com/hbgk/gkpulse/pkg/redis"
	"github.com/hbgk/gkpulse/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env carries what every subcommand needs. The store and Redis are opened on first use.
type env struct {
	out    io.Writer
	logger *zap.Logger
	store  db.Store
	redis  *redis.Client
}

func (e *env) Store(ctx context.Context) (db.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	s, err := db.NewStore(ctx, e.logger, "cli")
	if err != nil {
		return nil, err
	}
	e.store = s
	return s, nil
}

// Notifier publishes ingest events when REDIS_ENABLED is set, so a running API purges
// its cache after a CLI import.
func (e *env) Notifier(ctx context.Context) ingest.Notifier {
	if !utils.EnvBool("REDIS_ENABLED", false) {
		return nil
	}
	if e.redis == nil {
		c, err := redis.NewClient(ctx, e.logger)
		if err != nil {
			e.logger.Warn("Redis unavailable, ingest events will not be published", zap.Error(err))
			return nil
		}
		e.redis = c
	}
	return redis.NewNotifier(e.redis)
}

func (e *env) Pipeline(ctx context.Context) (*ingest.Pipeline, error) {
	store, err := e.Store(ctx)
	if err != nil {
		return nil, err
	}
	return ingest.New(store, e.Notifier(ctx), e.logger), nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	_ = e.logger.Sync()
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gkctl",
		Short:         "Operator tools for the exam position snapshot store",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	cmd.AddCommand(newImportCmd(e))
	cmd.AddCommand(newExportCmd(e))
	cmd.AddCommand(newCrawlCmd(e))
	cmd.AddCommand(newClassifyCmd(e))
	return cmd
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger, err := logging.NewCLI("gkctl")
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitIO
	}
	e := &env{out: stdout, logger: logger}
	defer e.Close()

	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitCode(err)
	}
	return exitOK
}
