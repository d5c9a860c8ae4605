package contentgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/autoapply/internal/types"
)

// defaultModel is used when no model name is configured.
const defaultModel = "gemini-1.5-flash"

// GeminiGenerator implements Generator using Google Gemini.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate asks the model for a cover letter, resume summary and the score
// triple as JSON, then validates the response against the draft schema before
// trusting the scores.
func (g *GeminiGenerator) Generate(ctx context.Context, candidate *types.JobCandidate, profile *types.AutomationProfile) (*types.GeneratedContent, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1) // Low temperature for consistent output
	model.ResponseMIMEType = "application/json"

	prompt := buildPrompt(candidate, profile)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	text = cleanJSONBlock(text)

	if err := ValidateDraft(text); err != nil {
		return nil, fmt.Errorf("generator response failed schema validation: %w", err)
	}

	var draft draftResponse
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse generator response: %w", err)
	}

	return &types.GeneratedContent{
		CoverLetter:   draft.CoverLetter,
		ResumeSummary: draft.ResumeSummary,
		Scores: types.ContentScores{
			Quality:          draft.Scores.Quality,
			Personalization:  draft.Scores.Personalization,
			AtsCompatibility: draft.Scores.AtsCompatibility,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Close releases resources held by the client.
func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// draftResponse mirrors the JSON the model is asked to return.
type draftResponse struct {
	CoverLetter   string `json:"cover_letter"`
	ResumeSummary string `json:"resume_summary"`
	Scores        struct {
		Quality          float64 `json:"quality"`
		Personalization  float64 `json:"personalization"`
		AtsCompatibility float64 `json:"ats_compatibility"`
	} `json:"scores"`
}

func buildPrompt(candidate *types.JobCandidate, profile *types.AutomationProfile) string {
	var sb strings.Builder

	sb.WriteString("You are an expert job application writer. Write a tailored cover letter and a short resume summary for the posting below.\n\n")
	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n")
	sb.WriteString(`{
  "cover_letter": "string",
  "resume_summary": "string",
  "scores": {
    "quality": 0.0,
    "personalization": 0.0,
    "ats_compatibility": 0.0
  }
}
`)
	sb.WriteString("\nAll scores must be between 0 and 1. Score your own output honestly:\n")
	sb.WriteString("- quality: overall writing quality\n")
	sb.WriteString("- personalization: how specific the letter is to this company and role\n")
	sb.WriteString("- ats_compatibility: how well the text parses in automated resume screening\n\n")

	if tmpl := profile.Rules.CoverLetterTemplate; tmpl != "" {
		sb.WriteString("Base the cover letter on this template, keeping its tone:\n\"\"\"\n")
		sb.WriteString(tmpl)
		sb.WriteString("\n\"\"\"\n\n")
	}

	sb.WriteString(fmt.Sprintf("Job title: %s\nCompany: %s\n", candidate.Title, candidate.Company))
	if candidate.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", candidate.Location))
	}
	if len(candidate.Requirements) > 0 {
		sb.WriteString("Requirements:\n")
		for _, req := range candidate.Requirements {
			sb.WriteString("- " + req + "\n")
		}
	}
	sb.WriteString("\nJob description:\n\"\"\"\n")
	sb.WriteString(candidate.Description)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
