package resolve

import (
	"github.com/glampguide/funnel-cli/internal/model"
)

// Aggregate folds all match candidates for one lead into a MatchSummary:
// per-source presence, strongest match type, and the deduplicated entity
// IDs in candidate order. The result is deterministic for a given candidate
// sequence.
func Aggregate(candidates []model.MatchCandidate) model.MatchSummary {
	summary := model.MatchSummary{BySource: make(map[model.Source]model.SourceMatches)}
	seen := make(map[model.Source]map[string]bool)

	for _, c := range candidates {
		if c.EntityID == "" {
			continue
		}

		sm, ok := summary.BySource[c.Source]
		if !ok {
			sm = model.SourceMatches{Best: c.MatchType}
			seen[c.Source] = make(map[string]bool)
		} else if c.MatchType.StrongerThan(sm.Best) {
			sm.Best = c.MatchType
		}

		if !seen[c.Source][c.EntityID] {
			seen[c.Source][c.EntityID] = true
			sm.EntityIDs = append(sm.EntityIDs, c.EntityID)
		}

		summary.BySource[c.Source] = sm
	}

	return summary
}
