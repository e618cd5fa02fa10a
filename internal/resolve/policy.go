package resolve

import (
	"github.com/rotisserie/eris"

	"github.com/glampguide/funnel-cli/internal/model"
)

// Decision is the classification policy's verdict for one MatchSummary.
type Decision struct {
	Classification model.Classification
	Reason         model.Reason
	NeedsDeal      bool
	// Winner is the source whose match decided the classification; empty
	// for new leads.
	Winner model.Source
}

// knownSources is the set of sources the precedence table covers.
var knownSources = map[model.Source]bool{
	model.SourceContacts: true,
	model.SourceDeals:    true,
	model.SourceRegistry: true,
}

// Classify maps a MatchSummary to a Decision under fixed precedence:
//
//  1. deal match      → duplicate / deal_exists (a live sales process; no action)
//  2. contact match   → duplicate / contact_duplicate (contact without a deal; needs one)
//  3. registry match  → duplicate / alohacamp_exists (property already tracked)
//  4. nothing matched → unique / new_lead
//
// The function is pure and total over summaries built from the known
// sources. A summary carrying an unknown source is a defect in the adapter
// wiring and is rejected rather than silently defaulted.
func Classify(summary model.MatchSummary) (Decision, error) {
	for src := range summary.BySource {
		if !knownSources[src] {
			return Decision{}, eris.Errorf("policy: summary contains unknown source %q", src)
		}
	}

	switch {
	case summary.Has(model.SourceDeals):
		return Decision{
			Classification: model.ClassDuplicate,
			Reason:         model.ReasonDealExists,
			NeedsDeal:      false,
			Winner:         model.SourceDeals,
		}, nil
	case summary.Has(model.SourceContacts):
		return Decision{
			Classification: model.ClassDuplicate,
			Reason:         model.ReasonContactDup,
			NeedsDeal:      true,
			Winner:         model.SourceContacts,
		}, nil
	case summary.Has(model.SourceRegistry):
		return Decision{
			Classification: model.ClassDuplicate,
			Reason:         model.ReasonRegistryMatch,
			NeedsDeal:      false,
			Winner:         model.SourceRegistry,
		}, nil
	default:
		return Decision{
			Classification: model.ClassUnique,
			Reason:         model.ReasonNewLead,
			NeedsDeal:      true,
		}, nil
	}
}
