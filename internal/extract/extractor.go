// Package extract turns raw scrap blobs into structured lead fields using
// Claude.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/anthropic"
)

// LeadStore is the slice of the store the extraction stage writes through.
type LeadStore interface {
	FetchUnextracted(ctx context.Context, limit int) ([]model.Lead, error)
	SetExtracted(ctx context.Context, leadID int64, fields model.ExtractedFields) error
}

// Options tunes an extraction run.
type Options struct {
	// Model names the Claude model to use. Defaults to Haiku: the task is
	// key-value extraction, not reasoning.
	Model string
	// MaxTokens caps the response size. Defaults to 1024.
	MaxTokens int64
}

// Summary reports one extraction run.
type Summary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Extractor runs pending leads through the model and persists the fields.
type Extractor struct {
	store  LeadStore
	client anthropic.Client
	schema *Schema
	opts   Options
}

// New creates an Extractor. A nil schema falls back to the built-in one.
func New(store LeadStore, client anthropic.Client, schema *Schema, opts Options) *Extractor {
	if schema == nil {
		schema = DefaultSchema()
	}
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Extractor{store: store, client: client, schema: schema, opts: opts}
}

// Run extracts fields for up to limit pending leads. One lead's failure
// never aborts the run; failed leads stay unextracted and retry next run.
func (e *Extractor) Run(ctx context.Context, limit int) (*Summary, error) {
	log := zap.L().With(zap.String("component", "extractor"))

	leads, err := e.store.FetchUnextracted(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "extract: fetch unextracted")
	}
	if len(leads) == 0 {
		log.Info("no leads pending extraction")
		return &Summary{}, nil
	}

	// One cached system block for the whole run.
	system := anthropic.BuildCachedSystemBlocks(e.schema.Prompt())
	log.Info("starting extraction run",
		zap.Int("leads", len(leads)),
		zap.String("model", e.opts.Model),
	)

	summary := &Summary{}
	var usage anthropic.TokenUsage
	for _, lead := range leads {
		fields, leadUsage, err := e.extractOne(ctx, system, lead.RawScrap)
		if err != nil {
			if ctx.Err() != nil {
				return summary, eris.Wrap(ctx.Err(), "extract: run canceled")
			}
			log.Warn("extraction failed, lead stays pending",
				zap.Int64("lead_id", lead.ID),
				zap.Error(err),
			)
			summary.Failed++
			continue
		}
		usage.InputTokens += leadUsage.InputTokens
		usage.OutputTokens += leadUsage.OutputTokens
		usage.CacheCreationInputTokens += leadUsage.CacheCreationInputTokens
		usage.CacheReadInputTokens += leadUsage.CacheReadInputTokens

		if err := e.store.SetExtracted(ctx, lead.ID, fields); err != nil {
			return summary, eris.Wrapf(err, "extract: persist fields for lead %d", lead.ID)
		}
		summary.Processed++
	}

	usage.LogCost(e.opts.Model, "extract")
	log.Info("extraction run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (e *Extractor) extractOne(ctx context.Context, system []anthropic.SystemBlock, scrap string) (model.ExtractedFields, anthropic.TokenUsage, error) {
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.opts.Model,
		MaxTokens: e.opts.MaxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: scrap},
		},
	})
	if err != nil {
		return model.ExtractedFields{}, anthropic.TokenUsage{}, err
	}

	fields, err := parseFields(resp.Text())
	if err != nil {
		return model.ExtractedFields{}, resp.Usage, err
	}
	return fields, resp.Usage, nil
}

// parseFields decodes the model's JSON object, tolerating code fences the
// prompt forbids but smaller models still emit.
func parseFields(text string) (model.ExtractedFields, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var fields model.ExtractedFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return model.ExtractedFields{}, eris.Wrap(err, "extract: decode model response")
	}
	return fields, nil
}
