package main

import (
	"path/filepath"
	"strings"

	"github.com/hbgk/gkpulse/pkg/db/models"
	"github.com/spf13/cobra"
)

func newImportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load positions and daily application reports",
		Args:  exactArgs(0, "a subcommand: positions, daily or dir"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newImportPositionsCmd(e), newImportDailyCmd(e), newImportDirCmd(e))
	return cmd
}

func newImportPositionsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "positions <file>",
		Short: "Upsert the master positions table from an xlsx or csv file",
		Args:  exactArgs(1, "exactly one positions file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := e.Pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := p.IngestPositionsFile(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(e.out, res)
		},
	}
}

func newImportDailyCmd(e *env) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily <file>",
		Short: "Store one day's application counts",
		Long: "Store one day's application counts. Without --date the file name must be\n" +
			"YYYY-MM-DD.xlsx or YYYY-MM-DD.csv.",
		Args: exactArgs(1, "exactly one daily report file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = dateFromName(args[0])
			}
			if date == "" {
				return usageErrorf("--date is required when the file name is not a date")
			}
			ctx := cmd.Context()
			p, err := e.Pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := p.IngestDailyFile(ctx, date, args[0])
			if err != nil {
				return err
			}
			return writeJSON(e.out, res)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "report date (YYYY-MM-DD)")
	return cmd
}

func newImportDirCmd(e *env) *cobra.Command {
	var positions, dailyDir string
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Bulk import a positions file and a directory of dated daily reports",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if positions == "" && dailyDir == "" {
				return usageErrorf("at least one of --positions or --daily-dir is required")
			}
			ctx := cmd.Context()
			p, err := e.Pipeline(ctx)
			if err != nil {
				return err
			}
			report, err := p.ImportDirectory(ctx, positions, dailyDir)
			if err != nil {
				return err
			}
			return writeJSON(e.out, report)
		},
	}
	cmd.Flags().StringVar(&positions, "positions", "", "positions workbook or csv")
	cmd.Flags().StringVar(&dailyDir, "daily-dir", "", "directory of YYYY-MM-DD.xlsx|csv reports")
	return cmd
}

// dateFromName returns the stem of a file named after its report date, or "".
func dateFromName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if models.ValidDate(stem) {
		return stem
	}
	return ""
}
