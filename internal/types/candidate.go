package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// JobCandidate is a job posting considered for automated application.
// Candidates are immutable once ingested.
type JobCandidate struct {
	ID              uuid.UUID    `json:"id"`
	ExternalID      string       `json:"external_id"`
	Title           string       `json:"title"`
	Company         string       `json:"company"`
	Description     string       `json:"description"`
	Requirements    []string     `json:"requirements,omitempty"`
	Skills          []string     `json:"skills,omitempty"`
	Location        string       `json:"location,omitempty"`
	Salary          *SalaryRange `json:"salary,omitempty"`
	ExperienceLevel string       `json:"experience_level,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// IngestCandidateRequest represents a job candidate submitted for rule evaluation
// and, if eligible, enqueueing. The description may contain board HTML; it is
// cleaned to plain text before matching.
type IngestCandidateRequest struct {
	ExternalID      string       `json:"external_id" validate:"required,min=1"`
	Title           string       `json:"title" validate:"required,min=1"`
	Company         string       `json:"company" validate:"required,min=1"`
	Description     string       `json:"description"`
	Requirements    []string     `json:"requirements,omitempty"`
	Skills          []string     `json:"skills,omitempty"`
	Location        string       `json:"location,omitempty"`
	Salary          *SalaryRange `json:"salary,omitempty"`
	ExperienceLevel string       `json:"experience_level,omitempty"`
}

// Validate validates the IngestCandidateRequest using the validator.
func (r *IngestCandidateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
