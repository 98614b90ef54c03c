package domain

import (
	"time"
)

// Case statuses as published in the line-list
const (
	StatusConfirmed = "confirmed"
	StatusSuspected = "suspected"
	StatusDiscarded = "discarded"
	StatusOmitError = "omit_error"
)

// GenderNone is the sentinel for a missing gender value
const GenderNone = "none"

// AgeBucket is one of the coarse age categories a case is classified into
type AgeBucket string

const (
	AgeTill18       AgeBucket = "till_18"
	AgeFrom18Till60 AgeBucket = "from_18_till_60"
	AgeFrom60       AgeBucket = "from_60"
	AgeNone         AgeBucket = "none"
)

// String returns the bucket label
func (b AgeBucket) String() string {
	return string(b)
}

// CaseRecord represents one row of the line-list.
// Free-text fields keep their raw form until the normalizer acts on them;
// an empty string stands for a missing value.
type CaseRecord struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	Country            string    `json:"country"`
	Gender             string    `json:"gender"`
	AgeRange           string    `json:"age_range"`
	ConfirmationMethod string    `json:"confirmation_method"`
	Symptoms           string    `json:"symptoms"`
	DateConfirmation   time.Time `json:"date_confirmation,omitempty"`
	DateDeath          time.Time `json:"date_death,omitempty"`

	// Derived fields, attached once by the normalizer and categorizer
	AgeBucket          AgeBucket `json:"age_bucket,omitempty"`
	SymptomsNormalized string    `json:"symptoms_normalized,omitempty"`
}

// IsConfirmed reports whether the case carries the confirmed status
func (c CaseRecord) IsConfirmed() bool {
	return c.Status == StatusConfirmed
}

// HasConfirmationDate reports whether the confirmation date parsed
func (c CaseRecord) HasConfirmationDate() bool {
	return !c.DateConfirmation.IsZero()
}

// HasDeathDate reports whether the death date parsed
func (c CaseRecord) HasDeathDate() bool {
	return !c.DateDeath.IsZero()
}
