package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/resilience"
	"github.com/glampguide/funnel-cli/pkg/airtable"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

func TestDealsAdapter_FuzzyMatch(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchDealsByName", ctx, "Camp Mazury Resort").Return([]hubspot.Object{
		{ID: "d1", Properties: map[string]string{"dealname": "Resort Camp Mazury"}},
		{ID: "d2", Properties: map[string]string{"dealname": "Totally Different Place"}},
	}, nil)

	a := NewDealsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{PropertyName: "Camp Mazury Resort"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "d1", candidates[0].EntityID)
	assert.Equal(t, model.SourceDeals, candidates[0].Source)
	assert.Equal(t, model.MatchName, candidates[0].MatchType)
	assert.GreaterOrEqual(t, candidates[0].Score, propertyMatchThreshold)
}

func TestDealsAdapter_NoPropertyName(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}

	a := NewDealsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com"})

	require.NoError(t, err)
	assert.Empty(t, candidates)
	hs.AssertNotCalled(t, "SearchDealsByName")
}

func TestDealsAdapter_PropagatesUnavailable(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchDealsByName", ctx, "Camp Mazury").
		Return(nil, resilience.Unavailable("hubspot", 503, errors.New("down")))

	a := NewDealsAdapter(hs)
	_, err := a.FindMatches(ctx, Query{PropertyName: "Camp Mazury"})

	require.Error(t, err)
	assert.True(t, resilience.IsUnavailable(err))
	assert.True(t, a.Required())
}

func TestRegistryAdapter_FuzzyMatch(t *testing.T) {
	ctx := context.Background()
	at := &mockAirtable{}
	at.On("SearchProperties", ctx, "Camp Mazury").Return([]airtable.Record{
		{ID: "recA", Fields: map[string]any{"Property Name": "Camp Mazury"}},
		{ID: "recB", Fields: map[string]any{"Property Name": "Glamping Bieszczady"}},
	}, nil)

	a := NewRegistryAdapter(at)
	candidates, err := a.FindMatches(ctx, Query{PropertyName: "Camp Mazury"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "recA", candidates[0].EntityID)
	assert.Equal(t, model.SourceRegistry, candidates[0].Source)
}

func TestRegistryAdapter_IsOptional(t *testing.T) {
	a := NewRegistryAdapter(&mockAirtable{})
	assert.False(t, a.Required())
	assert.Equal(t, model.SourceRegistry, a.Source())
}

func TestRegistryAdapter_NoPropertyName(t *testing.T) {
	ctx := context.Background()
	at := &mockAirtable{}

	a := NewRegistryAdapter(at)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com"})

	require.NoError(t, err)
	assert.Empty(t, candidates)
	at.AssertNotCalled(t, "SearchProperties")
}
