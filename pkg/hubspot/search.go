package hubspot

import (
	"context"
)

func (c *httpClient) SearchContactsByEmail(ctx context.Context, email string) ([]Object, error) {
	if email == "" {
		return nil, nil
	}
	return c.search(ctx, "contacts", searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{
			{PropertyName: "email", Operator: "EQ", Value: email},
		}}},
		Properties: contactProperties,
		Limit:      10,
	})
}

func (c *httpClient) SearchContactsByPhone(ctx context.Context, phoneE164 string) ([]Object, error) {
	if phoneE164 == "" {
		return nil, nil
	}
	return c.search(ctx, "contacts", searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{
			{PropertyName: "phone", Operator: "EQ", Value: phoneE164},
		}}},
		Properties: contactProperties,
		Limit:      10,
	})
}

func (c *httpClient) SearchContactsByName(ctx context.Context, firstName, lastName string) ([]Object, error) {
	var filters []filter
	if firstName != "" {
		filters = append(filters, filter{PropertyName: "firstname", Operator: "CONTAINS_TOKEN", Value: firstName})
	}
	if lastName != "" {
		filters = append(filters, filter{PropertyName: "lastname", Operator: "CONTAINS_TOKEN", Value: lastName})
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return c.search(ctx, "contacts", searchRequest{
		FilterGroups: []filterGroup{{Filters: filters}},
		Properties:   contactProperties,
		Limit:        20,
	})
}

func (c *httpClient) SearchDealsByName(ctx context.Context, name string) ([]Object, error) {
	if name == "" {
		return nil, nil
	}
	return c.search(ctx, "deals", searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{
			{PropertyName: "dealname", Operator: "CONTAINS_TOKEN", Value: name},
		}}},
		Properties: dealProperties,
		Limit:      20,
	})
}
