// Package resolve implements the cross-system duplicate-resolution engine:
// lookup adapters over the upstream systems of record, the match aggregator,
// the classification policy, and the batch resolver.
package resolve

import (
	"context"

	"github.com/glampguide/funnel-cli/internal/model"
)

// Fuzzy-match acceptance thresholds, on the 0..1 similarity scale.
const (
	nameMatchThreshold     = 0.80
	propertyMatchThreshold = 0.70
)

// Query carries the lead attributes an adapter may match on. Phone and name
// fields are optional; an adapter skips any dimension that is absent.
type Query struct {
	Email        string
	Phone        string
	FirstName    string
	LastName     string
	PropertyName string
	City         string
	Country      string
}

// QueryFromLead projects a lead onto the match dimensions.
func QueryFromLead(l model.Lead) Query {
	return Query{
		Email:        l.Email,
		Phone:        l.Phone,
		FirstName:    l.FirstName,
		LastName:     l.LastName,
		PropertyName: l.PropertyName,
		City:         l.City,
		Country:      l.Country,
	}
}

// Adapter is the lookup capability over one upstream system of record.
// Implementations are stateless and safe for concurrent use across leads;
// each throttles its own backend. An empty result means "checked, no match";
// an inability to check surfaces as a resilience.UnavailableError.
type Adapter interface {
	// Source identifies the upstream system this adapter queries.
	Source() model.Source

	// Required reports whether a failure of this adapter aborts the
	// lead's resolution. Optional adapters fail open: the resolver treats
	// their unavailability as "no match" with a degradation note.
	Required() bool

	// FindMatches returns zero or more candidates for the query.
	FindMatches(ctx context.Context, q Query) ([]model.MatchCandidate, error)
}
