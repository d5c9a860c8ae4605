// Package types provides type definitions for structured data used throughout the autoapply system.
package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ProfileStatus describes whether a profile's items may be picked up by the worker pool.
type ProfileStatus string

const (
	// ProfileActive means the profile's queue items are eligible for processing.
	ProfileActive ProfileStatus = "active"
	// ProfilePaused means processing is suspended; items keep their state.
	ProfilePaused ProfileStatus = "paused"
)

// SalaryRange is an inclusive salary band in whole currency units per year.
type SalaryRange struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"gte=0"`
}

// RuleSet holds the include/exclude/prioritize rules evaluated against each candidate.
// Empty lists match every candidate (fail-open, to avoid silently empty queues).
type RuleSet struct {
	Keywords            []string     `json:"keywords,omitempty"`
	ExcludeKeywords     []string     `json:"excludeKeywords,omitempty"`
	Companies           []string     `json:"companies,omitempty"`
	ExcludeCompanies    []string     `json:"excludeCompanies,omitempty"`
	Locations           []string     `json:"locations,omitempty"`
	ExcludeLocations    []string     `json:"excludeLocations,omitempty"`
	SalaryRange         *SalaryRange `json:"salaryRange,omitempty"`
	SalaryRequired      bool         `json:"salaryRequired,omitempty"`
	ExperienceLevels    []string     `json:"experienceLevel,omitempty"`
	ExperienceRequired  bool         `json:"experienceRequired,omitempty"`
	PrioritizeKeywords  []string     `json:"prioritizeKeywords,omitempty"`
	PreferredCompanies  []string     `json:"preferredCompanies,omitempty"`
	CoverLetterTemplate string       `json:"coverLetterTemplate,omitempty"`
}

// QualitySettings holds the thresholds the quality gate compares generated-content scores against.
// All scores are in [0,1].
type QualitySettings struct {
	MinimumQualityScore         float64 `json:"minimumQualityScore" validate:"gte=0,lte=1"`
	MinimumPersonalizationScore float64 `json:"minimumPersonalizationScore" validate:"gte=0,lte=1"`
	MinimumAtsCompatibility     float64 `json:"minimumAtsCompatibility" validate:"gte=0,lte=1"`
	AutoSubmitThreshold         float64 `json:"autoSubmitThreshold" validate:"gte=0,lte=1"`
	ApprovalRequired            bool    `json:"approvalRequired"`
}

// RateLimits caps submission attempts per calendar window. Zero means unlimited.
type RateLimits struct {
	DailyLimit   int `json:"dailyLimit" validate:"gte=0"`
	WeeklyLimit  int `json:"weeklyLimit" validate:"gte=0"`
	MonthlyLimit int `json:"monthlyLimit" validate:"gte=0"`
}

// AutomationProfile is a user's automation configuration. Profiles are soft-deleted,
// never hard-removed while queue items reference them.
type AutomationProfile struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Name      string          `json:"name"`
	Status    ProfileStatus   `json:"status"`
	Rules     RuleSet         `json:"rules"`
	Quality   QualitySettings `json:"quality"`
	Limits    RateLimits      `json:"limits"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Active reports whether the profile should be processed by the worker pool.
func (p *AutomationProfile) Active() bool {
	return p.Status == ProfileActive && p.DeletedAt == nil
}

// CreateProfileRequest represents the request to create an automation profile.
type CreateProfileRequest struct {
	OwnerID string          `json:"owner_id" validate:"required,uuid"`
	Name    string          `json:"name" validate:"required,min=1"`
	Rules   RuleSet         `json:"rules"`
	Quality QualitySettings `json:"quality"`
	Limits  RateLimits      `json:"limits"`
}

// Validate validates the CreateProfileRequest using the validator plus rule-set checks.
func (r *CreateProfileRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	return ValidateRuleSet(&r.Rules)
}

// UpdateProfileRequest represents a settings update for an existing profile.
type UpdateProfileRequest struct {
	Name    string          `json:"name" validate:"required,min=1"`
	Rules   RuleSet         `json:"rules"`
	Quality QualitySettings `json:"quality"`
	Limits  RateLimits      `json:"limits"`
}

// Validate validates the UpdateProfileRequest using the validator plus rule-set checks.
func (r *UpdateProfileRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	return ValidateRuleSet(&r.Rules)
}

// RuleValidationError indicates a malformed rule set, rejected at profile save time.
type RuleValidationError struct {
	Field   string
	Message string
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("invalid rule set: %s - %s", e.Field, e.Message)
}

// ValidateRuleSet checks a rule set for contradictions that would make evaluation
// meaningless. Malformed rule sets are rejected here, not at queue time.
func ValidateRuleSet(rules *RuleSet) error {
	if rules.SalaryRange != nil && rules.SalaryRange.Max > 0 && rules.SalaryRange.Min > rules.SalaryRange.Max {
		return &RuleValidationError{Field: "salaryRange", Message: "min exceeds max"}
	}
	for _, kw := range rules.Keywords {
		if kw == "" {
			return &RuleValidationError{Field: "keywords", Message: "empty keyword"}
		}
	}
	for _, kw := range rules.ExcludeKeywords {
		if kw == "" {
			return &RuleValidationError{Field: "excludeKeywords", Message: "empty keyword"}
		}
	}
	for _, kw := range rules.PrioritizeKeywords {
		if kw == "" {
			return &RuleValidationError{Field: "prioritizeKeywords", Message: "empty keyword"}
		}
	}
	return nil
}
