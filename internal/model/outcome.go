package model

import (
	"time"
)

// Classification is the final unique/duplicate verdict for a lead.
type Classification string

const (
	ClassUnique    Classification = "unique"
	ClassDuplicate Classification = "duplicate"
)

// Reason is the routing sub-category driving the downstream action.
type Reason string

const (
	ReasonNewLead       Reason = "new_lead"
	ReasonContactDup    Reason = "contact_duplicate"
	ReasonDealExists    Reason = "deal_exists"
	ReasonRegistryMatch Reason = "alohacamp_exists"
)

// Outcome is the engine's final product for one lead. Reason is always
// derived from the MatchSummary by the precedence policy, never set directly.
type Outcome struct {
	LeadID         int64          `json:"lead_id"`
	Classification Classification `json:"classification"`
	Reason         Reason         `json:"reason"`

	// NeedsDeal signals downstream deal creation: a brand-new lead or a
	// contact without a deal both need one.
	NeedsDeal bool `json:"needs_deal"`

	// MatchedIDs carries every matched entity identifier, grouped by
	// source, for audit. Matches below the winning precedence rule are
	// included here rather than discarded.
	MatchedIDs map[Source][]string `json:"matched_ids,omitempty"`

	ContactID string `json:"contact_id,omitempty"`
	DealID    string `json:"deal_id,omitempty"`
	MatchType MatchType `json:"match_type,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
}

// RunSummary aggregates one resolver invocation. Created fresh per run and
// reported once; never persisted.
type RunSummary struct {
	RunID string `json:"run_id"`

	ByClassification map[Classification]int `json:"by_classification"`
	ByReason         map[Reason]int         `json:"by_reason"`

	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	// Degraded counts leads resolved with the optional registry signal
	// unavailable (fail-open).
	Degraded      int `json:"degraded"`
	CommitFailed  int `json:"commit_failed"`

	Duration time.Duration `json:"duration"`
}

// NewRunSummary initializes an empty summary with the given run ID.
func NewRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:            runID,
		ByClassification: make(map[Classification]int),
		ByReason:         make(map[Reason]int),
	}
}

// Record counts one outcome into the summary.
func (s *RunSummary) Record(o *Outcome) {
	s.Processed++
	s.ByClassification[o.Classification]++
	s.ByReason[o.Reason]++
}
