package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/extract"
	anthropicpkg "github.com/glampguide/funnel-cli/pkg/anthropic"
)

var extractLimit int

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured fields from raw scrap blobs via Claude",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var schema *extract.Schema
		if cfg.Anthropic.SchemaPath != "" {
			schema, err = extract.LoadSchema(cfg.Anthropic.SchemaPath)
			if err != nil {
				return err
			}
			zap.L().Info("loaded extraction schema",
				zap.String("path", cfg.Anthropic.SchemaPath),
				zap.Int("fields", len(schema.Fields)),
			)
		}

		ex := extract.New(st, anthropicpkg.NewClient(cfg.Anthropic.Key), schema, extract.Options{
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		})

		summary, err := ex.Run(ctx, extractLimit)
		if err != nil {
			return eris.Wrap(err, "extraction run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractLimit, "limit", 50, "max leads to extract in one run")
	rootCmd.AddCommand(extractCmd)
}
