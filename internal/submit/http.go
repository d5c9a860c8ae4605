package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jonathan/autoapply/internal/types"
)

// HTTPSubmitter posts application payloads to an external submission endpoint.
type HTTPSubmitter struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPSubmitter creates a submitter targeting the given endpoint. The
// request timeout is enforced by the executor's context, not the client.
func NewHTTPSubmitter(endpoint, apiKey string) *HTTPSubmitter {
	return &HTTPSubmitter{
		client:   &http.Client{},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type submissionPayload struct {
	ExternalID    string               `json:"external_id"`
	Company       string               `json:"company"`
	Title         string               `json:"title"`
	CoverLetter   string               `json:"cover_letter"`
	ResumeSummary string               `json:"resume_summary"`
	Scores        *types.ContentScores `json:"scores,omitempty"`
}

type submissionResponse struct {
	CaptchaRequired           bool `json:"captcha_required"`
	HumanInterventionRequired bool `json:"human_intervention_required"`
}

// Submit posts the generated content for one candidate. Captcha and manual
// review flags are read from the response body when the endpoint reports them.
func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) (*Result, error) {
	payload := submissionPayload{
		ExternalID:    req.Candidate.ExternalID,
		Company:       req.Candidate.Company,
		Title:         req.Candidate.Title,
		CoverLetter:   req.Content.CoverLetter,
		ResumeSummary: req.Content.ResumeSummary,
		Scores:        &req.Content.Scores,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	result := &Result{HTTPStatus: resp.StatusCode}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result, nil
	}
	var parsed submissionResponse
	if json.Unmarshal(respBody, &parsed) == nil {
		result.CaptchaEncountered = parsed.CaptchaRequired
		result.HumanInterventionRequired = parsed.HumanInterventionRequired
	}

	return result, nil
}
