// Package store persists leads and their stage state across funnel runs.
package store

import (
	"context"

	"github.com/glampguide/funnel-cli/internal/model"
)

// StageCounts is a snapshot of how many leads sit at each funnel stage.
type StageCounts struct {
	Total             int `json:"total"`
	PendingValidation int `json:"pending_validation"`
	Valid             int `json:"valid"`
	Invalid           int `json:"invalid"`
	PendingResolution int `json:"pending_resolution"`
	Resolved          int `json:"resolved"`

	ByReason map[model.Reason]int `json:"by_reason,omitempty"`
}

// Store defines the persistence interface for the lead funnel.
type Store interface {
	// Ingest
	UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)

	// Extraction
	FetchUnextracted(ctx context.Context, limit int) ([]model.Lead, error)
	SetExtracted(ctx context.Context, leadID int64, fields model.ExtractedFields) error

	// Validation
	FetchUnvalidated(ctx context.Context, limit int) ([]model.Lead, error)
	SetValidation(ctx context.Context, leadID int64, status model.ValidationStatus, subStatus string) error

	// Resolution. startID pages through large backlogs: only leads with
	// id > startID are returned, ordered ascending.
	FetchEligible(ctx context.Context, limit int, startID int64) ([]model.Lead, error)
	CommitOutcome(ctx context.Context, leadID int64, outcome *model.Outcome) error

	// Reporting
	StageCounts(ctx context.Context) (*StageCounts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
