package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/airtable"
)

// RegistryAdapter looks up the AlohaCamp property registry by property
// name. The registry is the lowest-priority signal and is optional: an
// outage degrades the run instead of stalling it.
type RegistryAdapter struct {
	at airtable.Client
}

// NewRegistryAdapter creates the registry lookup adapter.
func NewRegistryAdapter(at airtable.Client) *RegistryAdapter {
	return &RegistryAdapter{at: at}
}

// Source implements Adapter.
func (a *RegistryAdapter) Source() model.Source {
	return model.SourceRegistry
}

// Required implements Adapter.
func (a *RegistryAdapter) Required() bool {
	return false
}

// FindMatches implements Adapter.
func (a *RegistryAdapter) FindMatches(ctx context.Context, q Query) ([]model.MatchCandidate, error) {
	if q.PropertyName == "" {
		return nil, nil
	}

	records, err := a.at.SearchProperties(ctx, q.PropertyName)
	if err != nil {
		return nil, eris.Wrap(err, "registry: search properties")
	}

	var candidates []model.MatchCandidate
	for _, rec := range records {
		score := TokenSetSimilarity(q.PropertyName, rec.PropertyName())
		if score < propertyMatchThreshold {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			Source:     model.SourceRegistry,
			EntityID:   rec.ID,
			EntityName: rec.PropertyName(),
			MatchType:  model.MatchName,
			Score:      score,
		})
	}
	return candidates, nil
}
