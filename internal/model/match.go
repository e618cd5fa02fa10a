package model

// Source identifies the upstream system that produced a match candidate.
type Source string

const (
	SourceContacts Source = "contacts"
	SourceDeals    Source = "deals"
	SourceRegistry Source = "registry"
)

// MatchType describes which lead attribute matched an upstream record.
type MatchType string

const (
	MatchEmail MatchType = "email"
	MatchPhone MatchType = "phone"
	MatchName  MatchType = "name"
)

// Rank returns the confidence rank of the match type. Lower is stronger:
// an exact email hit beats a phone hit, which beats a fuzzy name hit.
func (m MatchType) Rank() int {
	switch m {
	case MatchEmail:
		return 0
	case MatchPhone:
		return 1
	case MatchName:
		return 2
	default:
		return 3
	}
}

// StrongerThan reports whether m outranks other.
func (m MatchType) StrongerThan(other MatchType) bool {
	return m.Rank() < other.Rank()
}

// MatchCandidate is a single hit returned by one lookup adapter. Candidates
// are ephemeral: they exist only to be folded into a MatchSummary.
type MatchCandidate struct {
	Source     Source    `json:"source"`
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Score      float64   `json:"score,omitempty"`
}

// SourceMatches aggregates all candidates from one source.
type SourceMatches struct {
	Best      MatchType `json:"best"`
	EntityIDs []string  `json:"entity_ids"`
}

// MatchSummary is the normalized aggregate over all candidates for one lead.
// A source absent from BySource has no match; a present source always has at
// least one entity ID.
type MatchSummary struct {
	BySource map[Source]SourceMatches `json:"by_source"`
}

// Has reports whether the given source produced at least one candidate.
func (s MatchSummary) Has(src Source) bool {
	_, ok := s.BySource[src]
	return ok
}

// Best returns the strongest match type for the source, and whether the
// source matched at all.
func (s MatchSummary) Best(src Source) (MatchType, bool) {
	m, ok := s.BySource[src]
	if !ok {
		return "", false
	}
	return m.Best, true
}

// IDs returns the matched entity identifiers for the source.
func (s MatchSummary) IDs(src Source) []string {
	return s.BySource[src].EntityIDs
}
