// Package ingest normalizes job candidates before rule evaluation. Board
// descriptions frequently arrive as HTML fragments; matching runs against the
// cleaned plain text.
package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/types"
)

// Normalize converts an ingest request into an immutable candidate record,
// stripping HTML from the description and trimming stray whitespace from all
// matchable fields.
func Normalize(req *types.IngestCandidateRequest) (*types.JobCandidate, error) {
	description, err := CleanHTML(req.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to clean candidate description: %w", err)
	}

	candidate := &types.JobCandidate{
		ID:              uuid.New(),
		ExternalID:      strings.TrimSpace(req.ExternalID),
		Title:           strings.TrimSpace(req.Title),
		Company:         strings.TrimSpace(req.Company),
		Description:     description,
		Requirements:    trimAll(req.Requirements),
		Skills:          trimAll(req.Skills),
		Location:        strings.TrimSpace(req.Location),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
	}
	if req.Salary != nil {
		salary := *req.Salary
		candidate.Salary = &salary
	}
	return candidate, nil
}

// CleanHTML strips markup from a description, dropping script and style
// contents entirely. Plain-text input passes through with whitespace collapsed.
func CleanHTML(text string) (string, error) {
	if !strings.Contains(text, "<") {
		return collapseWhitespace(text), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("failed to parse description HTML: %w", err)
	}
	doc.Find("script, style").Remove()

	return collapseWhitespace(doc.Text()), nil
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
