package contentgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply/internal/types"
)

func TestValidateDraft_ValidResponse(t *testing.T) {
	jsonText := `{
		"cover_letter": "Dear team,",
		"resume_summary": "Summary",
		"scores": {"quality": 0.9, "personalization": 0.8, "ats_compatibility": 0.85}
	}`

	assert.NoError(t, ValidateDraft(jsonText))
}

func TestValidateDraft_ScoreOutOfRange(t *testing.T) {
	jsonText := `{
		"cover_letter": "Dear team,",
		"scores": {"quality": 1.4, "personalization": 0.8, "ats_compatibility": 0.85}
	}`

	err := ValidateDraft(jsonText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality")
}

func TestValidateDraft_MissingScores(t *testing.T) {
	assert.Error(t, ValidateDraft(`{"cover_letter": "Dear team,"}`))
}

func TestValidateDraft_EmptyCoverLetter(t *testing.T) {
	jsonText := `{
		"cover_letter": "",
		"scores": {"quality": 0.9, "personalization": 0.8, "ats_compatibility": 0.85}
	}`

	assert.Error(t, ValidateDraft(jsonText))
}

func TestCleanJSONBlock(t *testing.T) {
	wrapped := "```json\n{\"a\": 1}\n```"

	assert.Equal(t, `{"a": 1}`, cleanJSONBlock(wrapped))
	assert.Equal(t, `{"a": 1}`, cleanJSONBlock(`{"a": 1}`))
}

func TestTemplateGenerator_FillsPlaceholders(t *testing.T) {
	gen := NewTemplateGenerator()
	profile := &types.AutomationProfile{
		Rules: types.RuleSet{
			CoverLetterTemplate: "Applying for {{title}} at {{company}}.",
		},
	}
	candidate := &types.JobCandidate{Title: "Go Developer", Company: "Acme"}

	content, err := gen.Generate(context.Background(), candidate, profile)

	require.NoError(t, err)
	assert.Equal(t, "Applying for Go Developer at Acme.", content.CoverLetter)
}

func TestTemplateGenerator_ScoresWithinRange(t *testing.T) {
	gen := NewTemplateGenerator()
	candidate := &types.JobCandidate{Title: "Go Developer", Company: "Acme"}

	content, err := gen.Generate(context.Background(), candidate, &types.AutomationProfile{})

	require.NoError(t, err)
	for _, score := range []float64{content.Scores.Quality, content.Scores.Personalization, content.Scores.AtsCompatibility} {
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestTemplateGenerator_UnresolvedPlaceholderFails(t *testing.T) {
	gen := NewTemplateGenerator()
	profile := &types.AutomationProfile{
		Rules: types.RuleSet{CoverLetterTemplate: "Hello {{unknown}}"},
	}

	_, err := gen.Generate(context.Background(), &types.JobCandidate{}, profile)

	assert.Error(t, err)
}
