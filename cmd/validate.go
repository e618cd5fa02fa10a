package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/glampguide/funnel-cli/internal/validate"
	"github.com/glampguide/funnel-cli/pkg/zerobounce"
)

var validateLimit int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate pending lead emails through ZeroBounce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		zb := zerobounce.NewClient(cfg.ZeroBounce.Key,
			zerobounce.WithBaseURL(cfg.ZeroBounce.BaseURL),
		)

		v := validate.New(st, zb, validate.Options{
			BatchSize:       cfg.ZeroBounce.BatchSize,
			CountryPriority: cfg.ZeroBounce.CountryPriority,
		})

		summary, err := v.Run(ctx, validateLimit)
		if err != nil {
			return eris.Wrap(err, "validation run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateLimit, "limit", 500, "max leads to validate in one run")
	rootCmd.AddCommand(validateCmd)
}
