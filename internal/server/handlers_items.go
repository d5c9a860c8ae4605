package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/queue"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var filter store.ItemFilter

	q := r.URL.Query()
	if v := q.Get("profile_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, &ErrValidation{Field: "profile_id", Message: "must be a valid UUID"})
			return
		}
		filter.ProfileID = &id
	}
	if v := q.Get("state"); v != "" {
		for _, state := range strings.Split(v, ",") {
			filter.States = append(filter.States, types.QueueState(state))
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.respondError(w, &ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, &ErrItemNotFound{ItemID: id})
			return
		}
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, item)
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.store.GetItem(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, &ErrItemNotFound{ItemID: id})
			return
		}
		s.respondError(w, err)
		return
	}

	attempts, err := s.store.ListAttempts(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// decodeReview reads the optional review body. An empty body is a review with
// no notes.
func decodeReview(r *http.Request) (*types.ReviewRequest, error) {
	var req types.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	if err := req.Validate(); err != nil {
		return nil, &ErrValidation{Field: "notes", Message: err.Error()}
	}
	return &req, nil
}

func (s *Server) handleApproveItem(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, types.StateReadyToSubmit, "approved by reviewer")
}

func (s *Server) handleRejectItem(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, types.StateRejected, "rejected by reviewer")
}

// review applies a human decision to a pending_review item.
func (s *Server) review(w http.ResponseWriter, r *http.Request, to types.QueueState, reason string) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	req, err := decodeReview(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	item, err := s.store.TransitionItem(r.Context(), id, types.StatePendingReview, to, func(it *types.QueueItem) {
		it.ReviewNotes = req.Notes
		it.StateReason = reason
	})
	if err != nil {
		s.respondTransitionError(w, r, id, err, "review")
		return
	}

	if to == types.StateReadyToSubmit {
		if err := s.notifier.Notify(r.Context(), id); err != nil {
			s.logger.Warn("failed to notify workers", "item_id", id, "error", err)
		}
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// handleRetryItem reschedules a failed_transient item that never made it back
// onto the retry path, for example after a worker crash.
func (s *Server) handleRetryItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	item, err := s.store.TransitionItem(r.Context(), id, types.StateFailedTransient, types.StateRetrying, func(it *types.QueueItem) {
		it.NextEligibleAt = time.Now().UTC()
		it.StateReason = "manual retry"
	})
	if err != nil {
		s.respondTransitionError(w, r, id, err, "retry")
		return
	}

	if err := s.notifier.Notify(r.Context(), id); err != nil {
		s.logger.Warn("failed to notify workers", "item_id", id, "error", err)
	}
	s.jsonResponse(w, http.StatusOK, item)
}

func (s *Server) handleCancelItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, &ErrItemNotFound{ItemID: id})
			return
		}
		s.respondError(w, err)
		return
	}
	if !queue.Cancellable(item.State) {
		s.respondError(w, &ErrInvalidState{Action: "cancel", State: item.State})
		return
	}

	updated, err := s.store.TransitionItem(r.Context(), id, item.State, types.StateRejected, func(it *types.QueueItem) {
		it.StateReason = queue.CancelReason
	})
	if err != nil {
		s.respondTransitionError(w, r, id, err, "cancel")
		return
	}

	s.jsonResponse(w, http.StatusOK, updated)
}

// respondTransitionError maps transition failures, reporting the item's actual
// state on a conflict so the client can see what happened.
func (s *Server) respondTransitionError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, &ErrItemNotFound{ItemID: id})
		return
	}
	var invalid *queue.ErrInvalidTransition
	if errors.Is(err, store.ErrConflict) || errors.As(err, &invalid) {
		if item, getErr := s.store.GetItem(r.Context(), id); getErr == nil {
			s.respondError(w, &ErrInvalidState{Action: action, State: item.State})
			return
		}
	}
	s.respondError(w, err)
}
