package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/ingest"
	"github.com/jonathan/autoapply/internal/rules"
	"github.com/jonathan/autoapply/internal/types"
)

// IngestResponse reports the rule evaluation outcome for a submitted candidate.
// Eligible candidates carry the created queue item.
type IngestResponse struct {
	Eligible bool             `json:"eligible"`
	Priority int              `json:"priority"`
	Reasons  []string         `json:"reasons,omitempty"`
	Item     *types.QueueItem `json:"item,omitempty"`
}

func (s *Server) handleIngestCandidate(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	profile, err := s.getProfile(r.Context(), profileID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req types.IngestCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	candidate, err := ingest.Normalize(&req)
	if err != nil {
		s.respondError(w, &ErrValidation{Field: "description", Message: err.Error()})
		return
	}

	result := rules.Evaluate(candidate, &profile.Rules)
	if !result.Eligible {
		// Ineligible candidates are never stored; nothing enters the queue.
		s.jsonResponse(w, http.StatusOK, IngestResponse{
			Eligible: false,
			Priority: result.Priority,
			Reasons:  result.Reasons,
		})
		return
	}

	seen, err := s.store.CandidateSeen(r.Context(), profileID, candidate.ExternalID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if seen {
		s.respondError(w, &ErrDuplicateCandidate{ExternalID: candidate.ExternalID})
		return
	}

	now := time.Now().UTC()
	candidate.CreatedAt = now
	if err := s.store.CreateCandidate(r.Context(), candidate); err != nil {
		s.respondError(w, err)
		return
	}

	item := &types.QueueItem{
		ID:          uuid.New(),
		ProfileID:   profileID,
		CandidateID: candidate.ID,
		State:       types.StateQueued,
		MaxRetries:  s.maxRetries,
		Priority:    result.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateItem(r.Context(), item); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.notifier.Notify(r.Context(), item.ID); err != nil {
		s.logger.Warn("failed to notify workers", "item_id", item.ID, "error", err)
	}

	s.jsonResponse(w, http.StatusCreated, IngestResponse{
		Eligible: true,
		Priority: result.Priority,
		Reasons:  result.Reasons,
		Item:     item,
	})
}
