package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/glampguide/funnel-cli/internal/fetcher"
	"github.com/glampguide/funnel-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <source>...",
	Short: "Import lead exports into the store",
	Long:  "Parses CSV or XLSX lead exports from local paths, HTTP(S) URLs, or FTP URLs, merges duplicate emails across sources, and upserts the result.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		timeout := time.Duration(cfg.Import.TimeoutSecs) * time.Second
		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Import.UserAgent,
			Timeout:    timeout,
			RateLimits: fetcher.DefaultRateLimits(),
		})
		ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})

		imp := importer.New(st, httpFetcher, ftpFetcher)
		summary, err := imp.Run(ctx, args)
		if err != nil {
			return eris.Wrap(err, "import run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
