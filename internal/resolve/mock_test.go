package resolve

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/airtable"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

// --- HubSpot Mock ---

type mockHubSpot struct {
	mock.Mock
}

func (m *mockHubSpot) SearchContactsByEmail(ctx context.Context, email string) ([]hubspot.Object, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}

func (m *mockHubSpot) SearchContactsByPhone(ctx context.Context, phoneE164 string) ([]hubspot.Object, error) {
	args := m.Called(ctx, phoneE164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}

func (m *mockHubSpot) SearchContactsByName(ctx context.Context, firstName, lastName string) ([]hubspot.Object, error) {
	args := m.Called(ctx, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}

func (m *mockHubSpot) SearchDealsByName(ctx context.Context, name string) ([]hubspot.Object, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}

// --- Airtable Mock ---

type mockAirtable struct {
	mock.Mock
}

func (m *mockAirtable) SearchProperties(ctx context.Context, propertyName string) ([]airtable.Record, error) {
	args := m.Called(ctx, propertyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]airtable.Record), args.Error(1)
}

// --- Adapter Mock ---

type mockAdapter struct {
	mock.Mock
	source   model.Source
	required bool
}

func (m *mockAdapter) Source() model.Source {
	return m.source
}

func (m *mockAdapter) Required() bool {
	return m.required
}

func (m *mockAdapter) FindMatches(ctx context.Context, q Query) ([]model.MatchCandidate, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MatchCandidate), args.Error(1)
}

// --- Committer Mock ---

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) CommitOutcome(ctx context.Context, leadID int64, outcome *model.Outcome) error {
	args := m.Called(ctx, leadID, outcome)
	return args.Error(0)
}
