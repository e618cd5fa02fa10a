package model

import (
	"time"
)

// ValidationStatus represents the email-validation verdict for a lead.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = ""
	ValidationValid    ValidationStatus = "valid"
	ValidationInvalid  ValidationStatus = "invalid"
	ValidationCatchAll ValidationStatus = "catch-all"
	ValidationUnknown  ValidationStatus = "unknown"
)

// ResolutionStatus represents the duplicate-resolution stage state.
// The stage is a two-state machine: pending → resolved. The transition
// happens exactly once, and only after an Outcome has been committed.
type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = ""
	ResolutionResolved ResolutionStatus = "resolved"
)

// Lead is a candidate outreach record tracked through the funnel stages.
// Validation fields are owned by the validate stage, resolution fields by
// the resolve stage; neither stage writes the other's fields.
type Lead struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`

	RawScrap string `json:"raw_scrap,omitempty"`

	ValidationStatus    ValidationStatus `json:"validation_status,omitempty"`
	ValidationSubStatus string           `json:"validation_sub_status,omitempty"`
	ValidatedAt         *time.Time       `json:"validated_at,omitempty"`

	ResolutionStatus ResolutionStatus `json:"resolution_status,omitempty"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExtractedFields holds the structured attributes pulled out of a lead's
// raw scrap blob. Empty fields leave the lead's current values untouched.
type ExtractedFields struct {
	FirstName    string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	PropertyName string `json:"property_name,omitempty" yaml:"property_name,omitempty"`
	City         string `json:"city,omitempty" yaml:"city,omitempty"`
	Country      string `json:"country,omitempty" yaml:"country,omitempty"`
	Phone        string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// FullName joins the first and last name, skipping empty parts.
func (l Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	default:
		return l.FirstName + " " + l.LastName
	}
}

// Eligible reports whether the lead may enter the resolution engine:
// validation complete with a valid verdict, resolution still pending.
func (l Lead) Eligible() bool {
	return l.ValidationStatus == ValidationValid && l.ResolutionStatus == ResolutionPending
}
