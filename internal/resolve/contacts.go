package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/pkg/hubspot"
)

// ContactsAdapter looks up HubSpot contacts by email, then phone, then
// fuzzy name, in descending confidence order. The first dimension that
// produces hits wins; weaker dimensions are not consulted after a hit.
type ContactsAdapter struct {
	hs hubspot.Client
}

// NewContactsAdapter creates the contacts lookup adapter.
func NewContactsAdapter(hs hubspot.Client) *ContactsAdapter {
	return &ContactsAdapter{hs: hs}
}

// Source implements Adapter.
func (a *ContactsAdapter) Source() model.Source {
	return model.SourceContacts
}

// Required implements Adapter. A contact duplicate is a primary signal.
func (a *ContactsAdapter) Required() bool {
	return true
}

// FindMatches implements Adapter.
func (a *ContactsAdapter) FindMatches(ctx context.Context, q Query) ([]model.MatchCandidate, error) {
	// Exact email match is the strongest contact signal.
	objects, err := a.hs.SearchContactsByEmail(ctx, q.Email)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: search by email")
	}
	if len(objects) > 0 {
		return contactCandidates(objects, model.MatchEmail, 1.0), nil
	}

	// Fall back to the phone dimension if the lead has a usable number.
	if phone := NormalizePhone(q.Phone, q.Country); phone != "" {
		objects, err = a.hs.SearchContactsByPhone(ctx, phone)
		if err != nil {
			return nil, eris.Wrap(err, "contacts: search by phone")
		}
		if len(objects) > 0 {
			return contactCandidates(objects, model.MatchPhone, 1.0), nil
		}
	}

	// Last resort: token search by name, filtered by fuzzy similarity.
	if q.FirstName == "" && q.LastName == "" {
		return nil, nil
	}
	objects, err = a.hs.SearchContactsByName(ctx, q.FirstName, q.LastName)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: search by name")
	}

	var candidates []model.MatchCandidate
	for _, obj := range objects {
		first := Similarity(q.FirstName, obj.Property("firstname"))
		last := Similarity(q.LastName, obj.Property("lastname"))
		score := max(first, last)
		if score < nameMatchThreshold {
			continue
		}
		candidates = append(candidates, model.MatchCandidate{
			Source:     model.SourceContacts,
			EntityID:   obj.ID,
			EntityName: fullContactName(obj),
			MatchType:  model.MatchName,
			Score:      score,
		})
	}
	return candidates, nil
}

func contactCandidates(objects []hubspot.Object, mt model.MatchType, score float64) []model.MatchCandidate {
	candidates := make([]model.MatchCandidate, 0, len(objects))
	for _, obj := range objects {
		candidates = append(candidates, model.MatchCandidate{
			Source:     model.SourceContacts,
			EntityID:   obj.ID,
			EntityName: fullContactName(obj),
			MatchType:  mt,
			Score:      score,
		})
	}
	return candidates
}

func fullContactName(obj hubspot.Object) string {
	first, last := obj.Property("firstname"), obj.Property("lastname")
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
