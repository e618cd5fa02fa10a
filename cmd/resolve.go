package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/resolve"
	"github.com/glampguide/funnel-cli/internal/store"
	"github.com/glampguide/funnel-cli/pkg/airtable"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

var (
	resolveDryRun      bool
	resolveConcurrency int
	resolveLimit       int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve pending leads against HubSpot and the registry",
	Long:  "Classifies every validated, unresolved lead as unique or duplicate by checking HubSpot deals, HubSpot contacts, and the AlohaCamp property registry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		resolver := buildResolver(resolveDryRun)

		summary, err := runResolve(ctx, st, resolver, resolveLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "compute outcomes without committing them")
	resolveCmd.Flags().IntVar(&resolveConcurrency, "concurrency", 0, "worker pool size (default from config)")
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "max leads to resolve, 0 = all pending")
	rootCmd.AddCommand(resolveCmd)
}

// buildResolver wires the match adapters from config. HubSpot deals and
// contacts are required signals; the registry is optional and only attached
// when Airtable credentials are present.
func buildResolver(dryRun bool) func(committer resolve.Committer) *resolve.Resolver {
	hs := hubspot.NewClient(cfg.HubSpot.Token,
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithRateLimit(cfg.HubSpot.RateLimit),
	)

	adapters := []resolve.Adapter{
		resolve.NewDealsAdapter(hs),
		resolve.NewContactsAdapter(hs),
	}

	if cfg.Airtable.Key != "" && cfg.Airtable.BaseID != "" {
		at := airtable.NewClient(cfg.Airtable.Key, cfg.Airtable.BaseID, cfg.Airtable.Table,
			airtable.WithBaseURL(cfg.Airtable.BaseURL),
		)
		adapters = append(adapters, resolve.NewRegistryAdapter(at))
	} else {
		zap.L().Info("airtable credentials absent, resolving without registry signal")
	}

	concurrency := resolveConcurrency
	if concurrency == 0 {
		concurrency = cfg.Resolve.Concurrency
	}
	opts := resolve.Options{
		Concurrency:    concurrency,
		AdapterTimeout: time.Duration(cfg.Resolve.AdapterTimeoutSecs) * time.Second,
		DryRun:         dryRun,
	}

	return func(committer resolve.Committer) *resolve.Resolver {
		return resolve.New(adapters, committer, opts)
	}
}

// runResolve pages through the pending backlog and resolves each batch,
// folding the per-batch summaries into one.
func runResolve(ctx context.Context, st store.Store, newResolver func(resolve.Committer) *resolve.Resolver, limit int) (*model.RunSummary, error) {
	resolver := newResolver(st)

	var combined *model.RunSummary
	var startID int64
	remaining := limit

	for {
		batchSize := cfg.Resolve.BatchLimit
		if limit > 0 && remaining < batchSize {
			batchSize = remaining
		}

		leads, err := st.FetchEligible(ctx, batchSize, startID)
		if err != nil {
			return nil, eris.Wrap(err, "fetch eligible leads")
		}
		if len(leads) == 0 {
			break
		}

		_, summary := resolver.ResolveBatch(ctx, leads)
		combined = mergeSummaries(combined, summary)

		startID = leads[len(leads)-1].ID
		if limit > 0 {
			remaining -= len(leads)
			if remaining <= 0 {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if combined == nil {
		zap.L().Info("no pending leads to resolve")
		combined = model.NewRunSummary("")
	}
	return combined, nil
}

// mergeSummaries folds src into dst. The first batch's summary becomes the
// carrier; its run ID identifies the whole invocation.
func mergeSummaries(dst, src *model.RunSummary) *model.RunSummary {
	if dst == nil {
		return src
	}
	for k, v := range src.ByClassification {
		dst.ByClassification[k] += v
	}
	for k, v := range src.ByReason {
		dst.ByReason[k] += v
	}
	dst.Processed += src.Processed
	dst.Skipped += src.Skipped
	dst.Errors += src.Errors
	dst.Degraded += src.Degraded
	dst.CommitFailed += src.CommitFailed
	dst.Duration += src.Duration
	return dst
}
