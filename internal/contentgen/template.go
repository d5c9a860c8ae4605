package contentgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/autoapply/internal/types"
)

// TemplateGenerator is the canned fallback implementation of the Generator
// contract. It fills the profile's cover-letter template with candidate fields
// and scores the result with fixed heuristics, so the pipeline behaves the
// same whether or not an LLM backend is available.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the fallback generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

const fallbackTemplate = `Dear {{company}} hiring team,

I am writing to apply for the {{title}} position. My background matches the listed requirements and I would welcome the opportunity to contribute to your team.

Best regards`

// Generate fills the template deterministically. Personalization is scored by
// how many candidate fields actually appear in the output; template output is
// never scored high enough to clear a strict auto-submit threshold on its own.
func (g *TemplateGenerator) Generate(_ context.Context, candidate *types.JobCandidate, profile *types.AutomationProfile) (*types.GeneratedContent, error) {
	tmpl := profile.Rules.CoverLetterTemplate
	if tmpl == "" {
		tmpl = fallbackTemplate
	}

	replacer := strings.NewReplacer(
		"{{title}}", candidate.Title,
		"{{company}}", candidate.Company,
		"{{location}}", candidate.Location,
	)
	letter := replacer.Replace(tmpl)
	if strings.Contains(letter, "{{") {
		return nil, fmt.Errorf("cover letter template has unresolved placeholders")
	}

	personalization := 0.3
	if strings.Contains(letter, candidate.Company) {
		personalization += 0.2
	}
	if strings.Contains(letter, candidate.Title) {
		personalization += 0.2
	}

	summary := fmt.Sprintf("Candidate applying for %s at %s.", candidate.Title, candidate.Company)

	return &types.GeneratedContent{
		CoverLetter:   letter,
		ResumeSummary: summary,
		Scores: types.ContentScores{
			Quality:          0.75,
			Personalization:  personalization,
			AtsCompatibility: 0.85,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Close is a no-op for the template generator.
func (g *TemplateGenerator) Close() error {
	return nil
}
