package main

import (
	"path/filepath"

	"github.com/hbgk/gkpulse/pkg/analytics"
	"github.com/hbgk/gkpulse/pkg/export"
	"github.com/hbgk/gkpulse/pkg/utils"
	"github.com/spf13/cobra"
)

func newExportCmd(e *env) *cobra.Command {
	var out string
	var workers int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the static JSON and xlsx snapshot files",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.Store(ctx)
			if err != nil {
				return err
			}
			x := export.New(analytics.NewEngine(store, e.logger), e.logger, workers)
			report, err := x.Export(ctx, out)
			if err != nil {
				return err
			}
			return writeJSON(e.out, report)
		},
	}
	cmd.Flags().StringVar(&out, "out", utils.Env("EXPORT_DIR", filepath.Join("data", "export")), "output directory")
	cmd.Flags().IntVar(&workers, "workers", utils.EnvInt("EXPORT_WORKERS", export.DefaultWorkers), "concurrent file writers")
	return cmd
}
