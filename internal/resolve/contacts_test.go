package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/resilience"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

func TestContactsAdapter_EmailMatchWins(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").Return([]hubspot.Object{
		{ID: "101", Properties: map[string]string{"firstname": "Anna", "lastname": "Kowalska"}},
	}, nil)

	a := NewContactsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com", Phone: "+48601234567"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.SourceContacts, candidates[0].Source)
	assert.Equal(t, model.MatchEmail, candidates[0].MatchType)
	assert.Equal(t, "101", candidates[0].EntityID)
	assert.Equal(t, "Anna Kowalska", candidates[0].EntityName)
	// Phone and name lookups must not run after an email hit.
	hs.AssertNotCalled(t, "SearchContactsByPhone")
	hs.AssertNotCalled(t, "SearchContactsByName")
}

func TestContactsAdapter_PhoneFallback(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").Return([]hubspot.Object{}, nil)
	hs.On("SearchContactsByPhone", ctx, "+48601234567").Return([]hubspot.Object{
		{ID: "102", Properties: map[string]string{"firstname": "Jan"}},
	}, nil)

	a := NewContactsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com", Phone: "601 234 567", Country: "PL"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.MatchPhone, candidates[0].MatchType)
	assert.Equal(t, "102", candidates[0].EntityID)
}

func TestContactsAdapter_UnparseablePhoneSkipsDimension(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").Return([]hubspot.Object{}, nil)
	hs.On("SearchContactsByName", ctx, "Anna", "Kowalska").Return([]hubspot.Object{}, nil)

	a := NewContactsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{
		Email: "a@x.com", Phone: "junk", FirstName: "Anna", LastName: "Kowalska",
	})

	require.NoError(t, err)
	assert.Empty(t, candidates)
	hs.AssertNotCalled(t, "SearchContactsByPhone")
}

func TestContactsAdapter_NameFuzzyFilter(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").Return([]hubspot.Object{}, nil)
	hs.On("SearchContactsByName", ctx, "Anna", "Kowalska").Return([]hubspot.Object{
		{ID: "201", Properties: map[string]string{"firstname": "Anna", "lastname": "Kowalski"}},
		{ID: "202", Properties: map[string]string{"firstname": "Zofia", "lastname": "Nowak"}},
	}, nil)

	a := NewContactsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com", FirstName: "Anna", LastName: "Kowalska"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "201", candidates[0].EntityID)
	assert.Equal(t, model.MatchName, candidates[0].MatchType)
}

func TestContactsAdapter_NoNameNoFallback(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").Return([]hubspot.Object{}, nil)

	a := NewContactsAdapter(hs)
	candidates, err := a.FindMatches(ctx, Query{Email: "a@x.com"})

	require.NoError(t, err)
	assert.Empty(t, candidates)
	hs.AssertNotCalled(t, "SearchContactsByName")
}

func TestContactsAdapter_PropagatesUnavailable(t *testing.T) {
	ctx := context.Background()
	hs := &mockHubSpot{}
	hs.On("SearchContactsByEmail", ctx, "a@x.com").
		Return(nil, resilience.Unavailable("hubspot", 429, errors.New("quota")))

	a := NewContactsAdapter(hs)
	_, err := a.FindMatches(ctx, Query{Email: "a@x.com"})

	require.Error(t, err)
	assert.True(t, resilience.IsUnavailable(err))
}

func TestContactsAdapter_IsRequired(t *testing.T) {
	a := NewContactsAdapter(&mockHubSpot{})
	assert.True(t, a.Required())
	assert.Equal(t, model.SourceContacts, a.Source())
}
