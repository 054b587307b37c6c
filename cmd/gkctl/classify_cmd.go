package main

import (
	"github.com/hbgk/gkpulse/pkg/geo"
	"github.com/spf13/cobra"
)

type classification struct {
	Org      string `json:"org"`
	City     string `json:"city"`
	District string `json:"district"`
	Rule     string `json:"rule"`
}

func newClassifyCmd(e *env) *cobra.Command {
	var city, district string
	cmd := &cobra.Command{
		Use:   "classify <org>",
		Short: "Show how an organization name resolves to a city and district",
		Args:  exactArgs(1, "exactly one organization name"),
		RunE: func(_ *cobra.Command, args []string) error {
			loc, rule := geo.New().ClassifyRule(args[0], city, district)
			return writeJSON(e.out, classification{
				Org:      args[0],
				City:     loc.City,
				District: loc.District,
				Rule:     rule,
			})
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "raw city hint")
	cmd.Flags().StringVar(&district, "district", "", "raw district hint")
	return cmd
}
