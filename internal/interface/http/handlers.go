package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	app "github.com/alem-hub/progression-engine/internal/application/progression"
	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness. It does not touch dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// handleReady runs the registered dependency checks.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type profileResponse struct {
	Profile app.ProfileView `json:"profile"`
}

type achievementsResponse struct {
	Achievements []app.AchievementSummary `json:"achievements"`
}

// handleGetProfile serves GET /profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	view, err := s.deps.Service.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: view})
}

// handleGetAchievements serves GET /achievements.
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	list, err := s.deps.Service.GetAchievements(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []app.AchievementSummary{}
	}
	writeJSON(w, http.StatusOK, achievementsResponse{Achievements: list})
}

// recordEventRequest is the body of POST /events. The user is always the
// authenticated caller.
type recordEventRequest struct {
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt *time.Time     `json:"occurredAt,omitempty"`
}

// handleRecordEvent serves POST /events.
func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	req, err := s.decodeRecordEvent(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	event := domain.ActivityEvent{
		UserID:  userID,
		Type:    req.Type,
		Payload: req.Payload,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	result, err := s.deps.Service.RecordEvent(r.Context(), event)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) decodeRecordEvent(w http.ResponseWriter, r *http.Request) (recordEventRequest, error) {
	var req recordEventRequest

	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return req, shared.Validation("http", "RecordEvent", "request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return req, shared.Validation("http", "RecordEvent", "request body is required")
		default:
			return req, shared.WrapError("http", "RecordEvent", shared.ErrInvalidFormat, "request body is not valid JSON", err)
		}
	}
	if dec.More() {
		return req, shared.Validation("http", "RecordEvent", "request body must hold a single JSON object")
	}
	return req, nil
}
