package main

import (
	"github.com/hbgk/gkpulse/app/crawler"
	"github.com/spf13/cobra"
)

func newCrawlCmd(e *env) *cobra.Command {
	var listURL string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch and ingest the newest daily report once",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.Store(ctx)
			if err != nil {
				return err
			}
			c := crawler.NewCrawler(crawler.Options{
				Store:    store,
				Notifier: e.Notifier(ctx),
				Logger:   e.logger,
			})
			if listURL != "" {
				c.ListURL = listURL
			}
			res, err := c.Run(ctx)
			if err != nil {
				return err
			}
			return writeJSON(e.out, res)
		},
	}
	cmd.Flags().StringVar(&listURL, "url", "", "announcement list page (default CRAWL_URL)")
	return cmd
}
