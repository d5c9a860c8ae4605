package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req types.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, err)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid owner ID")
		return
	}

	now := time.Now().UTC()
	profile := &types.AutomationProfile{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      req.Name,
		Status:    types.ProfileActive,
		Rules:     req.Rules,
		Quality:   req.Quality,
		Limits:    req.Limits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProfile(r.Context(), profile); err != nil {
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	profile, err := s.getProfile(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req types.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, err)
		return
	}

	profile, err := s.getProfile(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	profile.Name = req.Name
	profile.Rules = req.Rules
	profile.Quality = req.Quality
	profile.Limits = req.Limits
	if err := s.store.UpdateProfile(r.Context(), profile); err != nil {
		s.respondError(w, err)
		return
	}
	s.profiles.Delete(id)

	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	if err := s.store.SoftDeleteProfile(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, &ErrProfileNotFound{ProfileID: id})
			return
		}
		s.respondError(w, err)
		return
	}
	s.profiles.Delete(id)

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePauseProfile(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, types.ProfilePaused)
}

func (s *Server) handleResumeProfile(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, types.ProfileActive)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, status types.ProfileStatus) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	if _, err := s.getProfile(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.SetProfileStatus(r.Context(), id, status); err != nil {
		s.respondError(w, err)
		return
	}
	s.profiles.Delete(id)

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleProfileAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.getProfile(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, &ErrValidation{Field: "from", Message: "must be RFC3339"})
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, &ErrValidation{Field: "to", Message: "must be RFC3339"})
			return
		}
	}

	stats, err := s.stats.ProfileStats(r.Context(), id, from, to)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, stats)
}
