package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

// DealsAdapter looks up HubSpot deals by property name with fuzzy matching.
// Deal names in the CRM carry the property name, so a hit means a sales
// process already exists for this property.
type DealsAdapter struct {
	hs hubspot.Client
}

// NewDealsAdapter creates the deals lookup adapter.
func NewDealsAdapter(hs hubspot.Client) *DealsAdapter {
	return &DealsAdapter{hs: hs}
}

// Source implements Adapter.
func (a *DealsAdapter) Source() model.Source {
	return model.SourceDeals
}

// Required implements Adapter. An existing deal is the strongest duplicate
// signal; resolution without it would risk creating duplicate deals.
func (a *DealsAdapter) Required() bool {
	return true
}

// FindMatches implements Adapter. A lead without a property name has no
// deal dimension and yields no candidates.
func (a *DealsAdapter) FindMatches(ctx context.Context, q Query) ([]model.MatchCandidate, error) {
	if q.PropertyName == "" {
		return nil, nil
	}

	objects, err := a.hs.SearchDealsByName(ctx, q.PropertyName)
	if err != nil {
		return nil, eris.Wrap(err, "deals: search by name")
	}

	var candidates []model.MatchCandidate
	for _, obj := range objects {
		score := TokenSetSimilarity(q.PropertyName, obj.Property("dealname"))
		if score < propertyMatchThreshold {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			Source:     model.SourceDeals,
			EntityID:   obj.ID,
			EntityName: obj.Property("dealname"),
			MatchType:  model.MatchName,
			Score:      score,
		})
	}
	return candidates, nil
}
