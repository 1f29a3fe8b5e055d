// Package http implements the REST API for Questlog Hub.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/application/command"
	"github.com/questlog-gg/questlog-hub/internal/application/query"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Questlog Hub API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":       "/health",
			"leaderboard":  "/api/v1/leaderboard",
			"feed":         "/api/v1/feed",
			"achievements": "/api/v1/users/{id}/achievements",
			"level":        "/api/v1/users/{id}/level",
		},
	}

	writeJSON(w, r, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes). It
// probes every registered dependency with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.HealthCheckers))
	ready := true
	for _, checker := range s.deps.HealthCheckers {
		if err := checker.Check(ctx); err != nil {
			checks[checker.Name()] = err.Error()
			ready = false
			continue
		}
		checks[checker.Name()] = "ok"
	}

	if !ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?limit=n
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Limit: getQueryParamInt(r, "limit", 20),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetFeed handles GET /api/v1/feed?limit=n
func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActivityFeedHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Feed handler not configured")
		return
	}

	q := query.GetActivityFeedQuery{
		Limit: getQueryParamInt(r, "limit", 20),
	}

	result, err := s.deps.GetActivityFeedHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserAchievements handles GET /api/v1/users/{id}/achievements
func (s *Server) handleGetUserAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserAchievementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Achievements handler not configured")
		return
	}

	q := query.GetUserAchievementsQuery{
		UserID: r.PathValue("id"),
	}

	result, err := s.deps.GetUserAchievementsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetUserLevel handles GET /api/v1/users/{id}/level
func (s *Server) handleGetUserLevel(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLevelProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Level handler not configured")
		return
	}

	q := query.GetLevelProgressQuery{
		UserID: r.PathValue("id"),
	}

	result, err := s.deps.GetLevelProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleEvaluateUser handles POST /api/v1/users/{id}/evaluate
func (s *Server) handleEvaluateUser(w http.ResponseWriter, r *http.Request) {
	if s.deps.EvaluateAchievementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Evaluate handler not configured")
		return
	}

	cmd := command.EvaluateAchievementsCommand{
		UserID: r.PathValue("id"),
	}

	result, err := s.deps.EvaluateAchievementsHandler.Handle(r.Context(), cmd)
	if err != nil {
		// A partial grant still awarded achievements; report them with a
		// status that tells the caller some work remains outstanding.
		if shared.IsPartialGrant(err) && result != nil {
			writeJSON(w, r, http.StatusMultiStatus, result)
			return
		}
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain error kinds onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsStoreUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "A backing store is temporarily unavailable")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
