package resolve

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/resilience"
)

// Committer persists one lead's outcome and flips its resolution flag.
// The resolver calls it exactly once per resolved lead and never retries a
// failed commit within the same run.
type Committer interface {
	CommitOutcome(ctx context.Context, leadID int64, outcome *model.Outcome) error
}

// Options tunes batch resolution.
type Options struct {
	// Concurrency bounds the worker pool. Defaults to 1 (sequential).
	Concurrency int
	// AdapterTimeout bounds each individual upstream lookup. Defaults to 30s.
	AdapterTimeout time.Duration
	// DryRun skips the commit step; outcomes are computed and reported only.
	DryRun bool
}

// Resolver runs the duplicate-resolution engine over a batch of leads.
type Resolver struct {
	adapters  []Adapter
	committer Committer
	opts      Options
}

// New creates a Resolver over the given adapters.
func New(adapters []Adapter, committer Committer, opts Options) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 30 * time.Second
	}
	return &Resolver{adapters: adapters, committer: committer, opts: opts}
}

// leadResult is one worker's output, combined into the RunSummary at a
// single point after the pool drains.
type leadResult struct {
	outcome      *model.Outcome
	skipped      bool
	failed       bool
	degraded     bool
	commitFailed bool
}

// ResolveBatch resolves each eligible lead in the batch and returns the
// outcomes (in ascending lead-ID order) plus a run summary. A single lead's
// failure never aborts the batch; the summary always reflects a completed
// run, even when every lead failed.
func (r *Resolver) ResolveBatch(ctx context.Context, leads []model.Lead) ([]model.Outcome, *model.RunSummary) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "resolver"), zap.String("run_id", runID))
	summary := model.NewRunSummary(runID)
	start := time.Now()

	// Ascending ID order for reproducible outcomes and summaries, and to
	// guarantee earlier leads drain first across runs.
	ordered := make([]model.Lead, 0, len(leads))
	seen := make(map[int64]bool, len(leads))
	for _, l := range leads {
		if !l.Eligible() {
			log.Warn("skipping ineligible lead", zap.Int64("lead_id", l.ID))
			summary.Skipped++
			continue
		}
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		ordered = append(ordered, l)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	log.Info("starting resolution batch",
		zap.Int("leads", len(ordered)),
		zap.Int("concurrency", r.opts.Concurrency),
	)

	results := make([]leadResult, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, lead := range ordered {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = leadResult{skipped: true}
				return nil
			default:
			}
			results[i] = r.resolveLead(gctx, lead, log)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	outcomes := make([]model.Outcome, 0, len(ordered))
	for _, res := range results {
		switch {
		case res.outcome != nil:
			summary.Record(res.outcome)
			if res.degraded {
				summary.Degraded++
			}
			if res.commitFailed {
				summary.CommitFailed++
				summary.Errors++
			}
			outcomes = append(outcomes, *res.outcome)
		case res.failed:
			summary.Skipped++
			summary.Errors++
		case res.skipped:
			summary.Skipped++
		}
	}

	summary.Duration = time.Since(start)
	log.Info("resolution batch complete",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Int("degraded", summary.Degraded),
		zap.Duration("duration", summary.Duration),
	)
	return outcomes, summary
}

// resolveLead runs all adapters for one lead, aggregates, classifies, and
// commits. Flags are untouched until the outcome is fully computed, so an
// interrupt between leads never leaves partial state visible.
func (r *Resolver) resolveLead(ctx context.Context, lead model.Lead, log *zap.Logger) leadResult {
	leadLog := log.With(zap.Int64("lead_id", lead.ID), zap.String("email", lead.Email))
	query := QueryFromLead(lead)

	var candidates []model.MatchCandidate
	degraded := false

	for _, adapter := range r.adapters {
		found, err := r.findMatches(ctx, adapter, query)
		if err != nil {
			if adapter.Required() {
				// Lead skipped this run; flag untouched, retried next run.
				leadLog.Warn("required adapter unavailable, skipping lead",
					zap.String("source", string(adapter.Source())),
					zap.Error(err),
				)
				return leadResult{failed: true}
			}
			// Fail open: optional signal absence must not stall resolution.
			leadLog.Warn("optional adapter unavailable, continuing without it",
				zap.String("source", string(adapter.Source())),
				zap.Error(err),
			)
			degraded = true
			continue
		}
		candidates = append(candidates, found...)
	}

	summary := Aggregate(candidates)
	decision, err := Classify(summary)
	if err != nil {
		// A summary the precedence table does not cover is a defect, not
		// a routable state.
		leadLog.Error("classification policy violation", zap.Error(err))
		return leadResult{failed: true}
	}

	outcome := buildOutcome(lead, summary, decision)
	logAuditTrail(leadLog, summary, decision)

	result := leadResult{outcome: outcome, degraded: degraded}
	if r.opts.DryRun {
		return result
	}

	if err := r.committer.CommitOutcome(ctx, lead.ID, outcome); err != nil {
		// Non-fatal: the flag stays pending and the lead is re-resolved
		// next run against then-current upstream state.
		leadLog.Error("commit failed, lead stays pending", zap.Error(err))
		result.commitFailed = true
	}
	return result
}

// findMatches invokes one adapter under the per-lookup timeout. A timeout
// surfaces as Unavailable so required/optional semantics apply uniformly.
func (r *Resolver) findMatches(ctx context.Context, adapter Adapter, q Query) ([]model.MatchCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.AdapterTimeout)
	defer cancel()

	found, err := adapter.FindMatches(callCtx, q)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return nil, resilience.Unavailable(string(adapter.Source()), 0, err)
	}
	return found, err
}

func buildOutcome(lead model.Lead, summary model.MatchSummary, decision Decision) *model.Outcome {
	outcome := &model.Outcome{
		LeadID:         lead.ID,
		Classification: decision.Classification,
		Reason:         decision.Reason,
		NeedsDeal:      decision.NeedsDeal,
		ResolvedAt:     time.Now().UTC(),
	}

	if len(summary.BySource) > 0 {
		outcome.MatchedIDs = make(map[model.Source][]string, len(summary.BySource))
		for src, sm := range summary.BySource {
			outcome.MatchedIDs[src] = sm.EntityIDs
		}
	}

	if ids := summary.IDs(model.SourceContacts); len(ids) > 0 {
		outcome.ContactID = ids[0]
	}
	if ids := summary.IDs(model.SourceDeals); len(ids) > 0 {
		outcome.DealID = ids[0]
	}
	if decision.Winner != "" {
		if best, ok := summary.Best(decision.Winner); ok {
			outcome.MatchType = best
		}
	}

	return outcome
}

// logAuditTrail records matches from sources below the winning precedence
// rule. They are carried in the outcome for audit, never an error.
func logAuditTrail(log *zap.Logger, summary model.MatchSummary, decision Decision) {
	for src, sm := range summary.BySource {
		if src == decision.Winner {
			continue
		}
		log.Debug("additional match below winning precedence",
			zap.String("source", string(src)),
			zap.Strings("entity_ids", sm.EntityIDs),
		)
	}
}
