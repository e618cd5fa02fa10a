package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchType_Rank(t *testing.T) {
	assert.True(t, MatchEmail.StrongerThan(MatchPhone))
	assert.True(t, MatchPhone.StrongerThan(MatchName))
	assert.True(t, MatchEmail.StrongerThan(MatchName))
	assert.False(t, MatchName.StrongerThan(MatchEmail))
	assert.False(t, MatchEmail.StrongerThan(MatchEmail))
}

func TestMatchSummary_EmptySource(t *testing.T) {
	s := MatchSummary{BySource: map[Source]SourceMatches{}}

	assert.False(t, s.Has(SourceContacts))
	_, ok := s.Best(SourceContacts)
	assert.False(t, ok)
	assert.Empty(t, s.IDs(SourceContacts))
}

func TestMatchSummary_PresentSource(t *testing.T) {
	s := MatchSummary{BySource: map[Source]SourceMatches{
		SourceDeals: {Best: MatchName, EntityIDs: []string{"d1", "d2"}},
	}}

	assert.True(t, s.Has(SourceDeals))
	best, ok := s.Best(SourceDeals)
	assert.True(t, ok)
	assert.Equal(t, MatchName, best)
	assert.Equal(t, []string{"d1", "d2"}, s.IDs(SourceDeals))
}

func TestLead_Eligible(t *testing.T) {
	tests := []struct {
		name       string
		validation ValidationStatus
		resolution ResolutionStatus
		want       bool
	}{
		{"valid and pending", ValidationValid, ResolutionPending, true},
		{"valid and resolved", ValidationValid, ResolutionResolved, false},
		{"unvalidated", ValidationPending, ResolutionPending, false},
		{"invalid email", ValidationInvalid, ResolutionPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Lead{ValidationStatus: tt.validation, ResolutionStatus: tt.resolution}
			assert.Equal(t, tt.want, l.Eligible())
		})
	}
}

func TestLead_FullName(t *testing.T) {
	assert.Equal(t, "Anna Kowalska", Lead{FirstName: "Anna", LastName: "Kowalska"}.FullName())
	assert.Equal(t, "Anna", Lead{FirstName: "Anna"}.FullName())
	assert.Equal(t, "Kowalska", Lead{LastName: "Kowalska"}.FullName())
	assert.Equal(t, "", Lead{}.FullName())
}

func TestRunSummary_Record(t *testing.T) {
	s := NewRunSummary("run-1")
	s.Record(&Outcome{Classification: ClassDuplicate, Reason: ReasonDealExists})
	s.Record(&Outcome{Classification: ClassDuplicate, Reason: ReasonContactDup})
	s.Record(&Outcome{Classification: ClassUnique, Reason: ReasonNewLead})

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.ByClassification[ClassDuplicate])
	assert.Equal(t, 1, s.ByClassification[ClassUnique])
	assert.Equal(t, 1, s.ByReason[ReasonDealExists])
	assert.Equal(t, 1, s.ByReason[ReasonNewLead])
}
