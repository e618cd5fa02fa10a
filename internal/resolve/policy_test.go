package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glampguide/funnel-cli/internal/model"
)

func summaryWith(sources ...model.Source) model.MatchSummary {
	s := model.MatchSummary{BySource: make(map[model.Source]model.SourceMatches)}
	for _, src := range sources {
		s.BySource[src] = model.SourceMatches{
			Best:      model.MatchName,
			EntityIDs: []string{string(src) + "-id"},
		}
	}
	return s
}

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		sources   []model.Source
		wantClass model.Classification
		wantReason model.Reason
		wantDeal  bool
	}{
		{"deal only", []model.Source{model.SourceDeals}, model.ClassDuplicate, model.ReasonDealExists, false},
		{"deal beats contact", []model.Source{model.SourceContacts, model.SourceDeals}, model.ClassDuplicate, model.ReasonDealExists, false},
		{"deal beats everything", []model.Source{model.SourceContacts, model.SourceDeals, model.SourceRegistry}, model.ClassDuplicate, model.ReasonDealExists, false},
		{"contact without deal", []model.Source{model.SourceContacts}, model.ClassDuplicate, model.ReasonContactDup, true},
		{"contact beats registry", []model.Source{model.SourceContacts, model.SourceRegistry}, model.ClassDuplicate, model.ReasonContactDup, true},
		{"registry only", []model.Source{model.SourceRegistry}, model.ClassDuplicate, model.ReasonRegistryMatch, false},
		{"no matches", nil, model.ClassUnique, model.ReasonNewLead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := Classify(summaryWith(tt.sources...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantClass, decision.Classification)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Equal(t, tt.wantDeal, decision.NeedsDeal)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	summary := summaryWith(model.SourceContacts, model.SourceRegistry)

	first, err := Classify(summary)
	require.NoError(t, err)
	second, err := Classify(summary)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassify_UnknownSourceRejected(t *testing.T) {
	summary := model.MatchSummary{BySource: map[model.Source]model.SourceMatches{
		model.Source("salesforce"): {Best: model.MatchEmail, EntityIDs: []string{"x"}},
	}}

	_, err := Classify(summary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestClassify_WinnerSource(t *testing.T) {
	d, err := Classify(summaryWith(model.SourceDeals, model.SourceRegistry))
	require.NoError(t, err)
	assert.Equal(t, model.SourceDeals, d.Winner)

	d, err = Classify(summaryWith())
	require.NoError(t, err)
	assert.Empty(t, d.Winner)
}
