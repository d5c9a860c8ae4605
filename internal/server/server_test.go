package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply/internal/dispatch"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(mem, dispatch.Noop{}, logger, Config{Port: "0", MaxRetries: 3})
	return srv, mem
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createProfile(t *testing.T, handler http.Handler) types.AutomationProfile {
	t.Helper()
	req := types.CreateProfileRequest{
		OwnerID: uuid.NewString(),
		Name:    "backend search",
		Quality: types.QualitySettings{AutoSubmitThreshold: 0.9},
	}
	rec := doJSON(t, handler, http.MethodPost, "/profiles", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[types.AutomationProfile](t, rec)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_MissingKeyRejected(t *testing.T) {
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(mem, dispatch.Noop{}, logger, Config{Port: "0", APIKey: "secret"})
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/items", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open for probes.
	rec = doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("X-API-Key", "secret")
	authed := httptest.NewRecorder()
	handler.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}

func TestCreateProfile_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/profiles", types.CreateProfileRequest{Name: "no owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/profiles", types.CreateProfileRequest{
		OwnerID: uuid.NewString(),
		Name:    "bad salary",
		Rules:   types.RuleSet{SalaryRange: &types.SalaryRange{Min: 200000, Max: 100000}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/profiles/"+profile.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ProfileActive, decodeBody[types.AutomationProfile](t, rec).Status)

	rec = doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/profiles/"+profile.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ProfilePaused, decodeBody[types.AutomationProfile](t, rec).Status)

	rec = doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/profiles/"+profile.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/profiles/"+profile.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProfile_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/profiles/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func ingestRequest(externalID string) types.IngestCandidateRequest {
	return types.IngestCandidateRequest{
		ExternalID:  externalID,
		Title:       "Senior Go Developer",
		Company:     "Acme",
		Description: "<p>Build Go services with Postgres.</p>",
	}
}

func TestIngestCandidate_EligibleCreatesQueuedItem(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/candidates", ingestRequest("job-1"))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[IngestResponse](t, rec)
	assert.True(t, resp.Eligible)
	require.NotNil(t, resp.Item)
	assert.Equal(t, types.StateQueued, resp.Item.State)
	assert.Equal(t, 50, resp.Item.Priority)

	stored, err := mem.GetItem(context.Background(), resp.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, stored.ProfileID)
}

func TestIngestCandidate_ExcludedNeverEnqueued(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	rec := doJSON(t, handler, http.MethodPost, "/profiles", types.CreateProfileRequest{
		OwnerID: uuid.NewString(),
		Name:    "picky",
		Rules:   types.RuleSet{ExcludeKeywords: []string{"go"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	profile := decodeBody[types.AutomationProfile](t, rec)

	rec = doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/candidates", ingestRequest("job-2"))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[IngestResponse](t, rec)
	assert.False(t, resp.Eligible)
	assert.Nil(t, resp.Item)

	items, err := mem.ListItems(context.Background(), store.ItemFilter{ProfileID: &profile.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIngestCandidate_DuplicateConflicts(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/candidates", ingestRequest("job-3"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/profiles/"+profile.ID.String()+"/candidates", ingestRequest("job-3"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func seedItem(t *testing.T, mem *store.Memory, profileID uuid.UUID, state types.QueueState) *types.QueueItem {
	t.Helper()
	candidate := &types.JobCandidate{ID: uuid.New(), ExternalID: uuid.NewString(), Title: "Go Developer", Company: "Acme"}
	require.NoError(t, mem.CreateCandidate(context.Background(), candidate))
	item := &types.QueueItem{
		ID:          uuid.New(),
		ProfileID:   profileID,
		CandidateID: candidate.ID,
		State:       state,
		MaxRetries:  3,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, mem.CreateItem(context.Background(), item))
	return item
}

func TestApproveItem(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StatePendingReview)

	rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/approve", types.ReviewRequest{Notes: "looks good"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[types.QueueItem](t, rec)
	assert.Equal(t, types.StateReadyToSubmit, updated.State)
	assert.Equal(t, "looks good", updated.ReviewNotes)
}

func TestRejectItem(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StatePendingReview)

	rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/reject", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.StateRejected, decodeBody[types.QueueItem](t, rec).State)
}

func TestApproveItem_WrongStateConflicts(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StateQueued)

	rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/approve", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelItem(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)

	for _, state := range []types.QueueState{types.StateQueued, types.StatePendingReview, types.StateReadyToSubmit, types.StateRetrying} {
		item := seedItem(t, mem, profile.ID, state)

		rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/cancel", nil)

		require.Equal(t, http.StatusOK, rec.Code, "state %s", state)
		updated := decodeBody[types.QueueItem](t, rec)
		assert.Equal(t, types.StateRejected, updated.State)
		assert.Equal(t, "user-cancelled", updated.StateReason)
	}
}

func TestCancelItem_SubmittingForbidden(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StateSubmitting)

	rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/cancel", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryItem(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StateFailedTransient)

	rec := doJSON(t, handler, http.MethodPost, "/items/"+item.ID.String()+"/retry", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[types.QueueItem](t, rec)
	assert.Equal(t, types.StateRetrying, updated.State)
	assert.False(t, updated.NextEligibleAt.After(time.Now().UTC()))
}

func TestListItems_FilterByState(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	seedItem(t, mem, profile.ID, types.StateQueued)
	seedItem(t, mem, profile.ID, types.StateSubmitted)

	rec := doJSON(t, handler, http.MethodGet, "/items?profile_id="+profile.ID.String()+"&state=submitted", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetItem_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/items/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileAnalytics(t *testing.T) {
	srv, mem := newTestServer(t)
	handler := srv.Handler()
	profile := createProfile(t, handler)
	item := seedItem(t, mem, profile.ID, types.StateSubmitted)
	require.NoError(t, mem.RecordAttempt(context.Background(), &types.SubmissionAttempt{
		ID:            uuid.New(),
		QueueItemID:   item.ID,
		AttemptNumber: 1,
		Timestamp:     time.Now().UTC(),
		Outcome:       types.OutcomeSuccess,
		DurationMs:    120,
	}))

	rec := doJSON(t, handler, http.MethodGet, "/profiles/"+profile.ID.String()+"/analytics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[types.ProfileStats](t, rec)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.TotalAttempts)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}
