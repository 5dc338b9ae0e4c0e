package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/alem-hub/progression-engine/internal/application/progression"
	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func newTestService(t *testing.T) *app.Service {
	t.Helper()
	catalog, err := domain.NewCatalog(
		domain.AchievementDefinition{ID: "first-streak", Name: "On a roll", Icon: "fire", PointsAwarded: 15,
			Criteria: domain.EventCriteria{EventType: "streak.started"}},
		domain.AchievementDefinition{ID: "marathon", Name: "Marathon", PointsAwarded: 25,
			Criteria: domain.ThresholdCriteria{EventType: "session.ended", Field: "minutes", Min: 120}},
	)
	require.NoError(t, err)

	store := memory.NewStore()
	seed := domain.NewProfile("learner", time.Now().UTC())
	seed.Points = 90
	store.Put(seed)

	svc, err := app.NewService(app.Dependencies{
		Store:   store,
		Unlocks: store,
		Catalog: catalog,
		Levels: domain.MustLevelTable([]domain.LevelThreshold{
			{MinPoints: 0, Level: 1},
			{MinPoints: 100, Level: 2},
			{MinPoints: 500, Level: 3},
		}),
	}, app.DefaultConfig())
	require.NoError(t, err)
	return svc
}

func newTestServer(t *testing.T, svc ProgressionService, health handlers.HealthChecker) http.Handler {
	t.Helper()
	srv, err := NewServer(DefaultConfig(), Dependencies{
		Service:       svc,
		Auth:          NewHeaderAuthenticator(""),
		HealthChecker: health,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// stubService returns fixed errors.
type stubService struct {
	err error
}

func (s stubService) GetProfile(context.Context, shared.UserID) (app.ProfileView, error) {
	return app.ProfileView{}, s.err
}

func (s stubService) GetAchievements(context.Context, shared.UserID) ([]app.AchievementSummary, error) {
	return nil, s.err
}

func (s stubService) RecordEvent(context.Context, domain.ActivityEvent) (*app.RecordResult, error) {
	return nil, s.err
}

type errorBody struct {
	Error APIError `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// READ ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func TestGetProfile_NewUserZeroState(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	rec := do(t, h, http.MethodGet, "/profile", "newcomer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"profile":{"points":0,"level":1,"unlocks":[],"nextLevelAt":100}}`, rec.Body.String())
}

func TestGetAchievements_EmptyList(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	rec := do(t, h, http.MethodGet, "/achievements", "newcomer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"achievements":[]}`, rec.Body.String())
}

func TestReadRoutes_RequireIdentity(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	for _, path := range []string{"/profile", "/achievements"} {
		rec := do(t, h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/profile", "GET, HEAD"},
		{http.MethodDelete, "/profile", "GET, HEAD"},
		{http.MethodPut, "/achievements", "GET, HEAD"},
		{http.MethodGet, "/events", "POST"},
	}
	for _, tt := range tests {
		rec := do(t, h, tt.method, tt.path, "learner", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.allow, rec.Header().Get("Allow"))
		assert.Equal(t, "method_not_allowed", decodeError(t, rec).Code)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// POST /events
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordEvent_UnlocksAndLevelsUp(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	rec := do(t, h, http.MethodPost, "/events", "learner", `{"type":"streak.started"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"profile":{"points":105,"level":2,"unlocks":["first-streak"],"nextLevelAt":500},
		"unlocked":[{"id":"first-streak","name":"On a roll","description":"","icon":"fire","pointsAwarded":15}]
	}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/events", "learner", `{"type":"streak.started"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"profile":{"points":105,"level":2,"unlocks":["first-streak"],"nextLevelAt":500},
		"unlocked":[]
	}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/achievements", "learner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Achievements []app.AchievementSummary `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Achievements, 1)
	assert.Equal(t, "first-streak", body.Achievements[0].ID)
	assert.NotNil(t, body.Achievements[0].UnlockedAt)
}

func TestRecordEvent_ThresholdPayloadNumbers(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	rec := do(t, h, http.MethodPost, "/events", "runner", `{"type":"session.ended","payload":{"minutes":121}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"marathon"`)
}

func TestRecordEvent_BadRequests(t *testing.T) {
	h := newTestServer(t, newTestService(t), nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"type":`},
		{"trailing data", `{"type":"a"} {"type":"b"}`},
		{"missing type", `{"payload":{}}`},
		{"missing threshold field", `{"type":"session.ended","payload":{}}`},
		{"wrong field type", `{"type":"session.ended","payload":{"minutes":"long"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/events", "learner", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
		})
	}
}

func TestRecordEvent_BodyTooLarge(t *testing.T) {
	srv, err := NewServer(Config{MaxBodyBytes: 32}, Dependencies{
		Service: newTestService(t),
		Auth:    NewHeaderAuthenticator(""),
	})
	require.NoError(t, err)

	body := `{"type":"streak.started","payload":{"padding":"` + strings.Repeat("x", 64) + `"}}`
	rec := do(t, srv.Handler(), http.MethodPost, "/events", "learner", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func TestErrorMapping(t *testing.T) {
	storageErr := shared.StorageUnavailable("store", "GetOrCreate", errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter string
	}{
		{"validation", shared.Validation("progression", "Evaluate", "payload field %q is required", "days"), http.StatusBadRequest, "invalid_request", ""},
		{"conflict exhausted", shared.ErrRetriesExhausted, http.StatusServiceUnavailable, "conflict", "1"},
		{"storage", storageErr, http.StatusInternalServerError, "internal_error", ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, stubService{err: tt.err}, nil)
			rec := do(t, h, http.MethodGet, "/profile", "learner", "")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotContains(t, apiErr.Message, "10.0.0.5")
		})
	}
}

func TestRecovery_PanicsBecome500(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), Dependencies{
		Service: newTestService(t),
		Auth:    NewHeaderAuthenticator(""),
	})
	require.NoError(t, err)
	srv.router.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec := do(t, srv.Handler(), http.MethodGet, "/panic", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPS
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthAndReady(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("store", func(context.Context) error { return nil })
	h := newTestServer(t, newTestService(t), checker)

	rec := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("store", func(context.Context) error { return errors.New("down") })
	rec = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{Auth: NewHeaderAuthenticator("")})
	assert.Error(t, err)
	_, err = NewServer(DefaultConfig(), Dependencies{Service: stubService{}})
	assert.Error(t, err)
}
