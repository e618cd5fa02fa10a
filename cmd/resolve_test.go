package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glampguide/funnel-cli/internal/config"
	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/resolve"
	"github.com/glampguide/funnel-cli/internal/store"
)

func TestMergeSummaries(t *testing.T) {
	first := model.NewRunSummary("run-1")
	first.Processed = 3
	first.Skipped = 1
	first.ByClassification[model.ClassUnique] = 2
	first.ByClassification[model.ClassDuplicate] = 1
	first.ByReason[model.ReasonNewLead] = 2
	first.Duration = time.Second

	second := model.NewRunSummary("run-2")
	second.Processed = 2
	second.Errors = 1
	second.ByClassification[model.ClassUnique] = 2
	second.ByReason[model.ReasonNewLead] = 2
	second.Duration = 2 * time.Second

	merged := mergeSummaries(nil, first)
	merged = mergeSummaries(merged, second)

	assert.Equal(t, "run-1", merged.RunID)
	assert.Equal(t, 5, merged.Processed)
	assert.Equal(t, 1, merged.Skipped)
	assert.Equal(t, 1, merged.Errors)
	assert.Equal(t, 4, merged.ByClassification[model.ClassUnique])
	assert.Equal(t, 4, merged.ByReason[model.ReasonNewLead])
	assert.Equal(t, 3*time.Second, merged.Duration)
}

func TestRunResolve_DrainsBacklog(t *testing.T) {
	ctx := context.Background()

	cfg = &config.Config{}
	cfg.Resolve.BatchLimit = 1 // force paging across batches

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	_, err = st.UpsertLeads(ctx, []model.Lead{
		{Email: "anna@mazury.pl"},
		{Email: "jan@tatry.pl"},
	})
	require.NoError(t, err)
	for _, id := range []int64{1, 2} {
		require.NoError(t, st.SetValidation(ctx, id, model.ValidationValid, ""))
	}

	// No adapters: every lead classifies as a brand-new unique lead.
	newResolver := func(c resolve.Committer) *resolve.Resolver {
		return resolve.New(nil, c, resolve.Options{})
	}

	summary, err := runResolve(ctx, st, newResolver, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.ByReason[model.ReasonNewLead])

	// The backlog is drained; a second invocation finds nothing.
	summary, err = runResolve(ctx, st, newResolver, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestRunResolve_HonorsLimit(t *testing.T) {
	ctx := context.Background()

	cfg = &config.Config{}
	cfg.Resolve.BatchLimit = 500

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	_, err = st.UpsertLeads(ctx, []model.Lead{
		{Email: "anna@mazury.pl"},
		{Email: "jan@tatry.pl"},
		{Email: "ola@bory.pl"},
	})
	require.NoError(t, err)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, st.SetValidation(ctx, id, model.ValidationValid, ""))
	}

	newResolver := func(c resolve.Committer) *resolve.Resolver {
		return resolve.New(nil, c, resolve.Options{})
	}

	summary, err := runResolve(ctx, st, newResolver, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	remaining, err := st.FetchEligible(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestFormatStageCounts(t *testing.T) {
	var buf bytes.Buffer
	formatStageCounts(&buf, &store.StageCounts{
		Total:             10,
		PendingValidation: 3,
		Valid:             5,
		Invalid:           2,
		PendingResolution: 4,
		Resolved:          1,
		ByReason: map[model.Reason]int{
			model.ReasonNewLead: 1,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "STAGE")
	assert.Contains(t, out, "pending resolution")
	assert.Contains(t, out, "new_lead")
}
