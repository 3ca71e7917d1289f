// Package httpserver exposes the ATP gateway over HTTP. Handlers decode,
// delegate to the service layer and encode; no lifecycle logic lives here.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atplabs/atp-gateway/internal/auth"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

type Server struct {
	gateway   *service.Gateway
	jwtSecret string
}

func New(gateway *service.Gateway, jwtSecret string) *Server {
	return &Server{gateway: gateway, jwtSecret: jwtSecret}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/atp/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/actions", s.handleListActions)
		r.Get("/actions/{id}", s.handleGetAction)
		r.Get("/actions/{id}/audit-trail", s.handleAuditTrail)
		r.Get("/actions/{id}/explain", s.handleExplain)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.jwtSecret))
			r.Post("/actions/declare", s.handleDeclare)
			r.Post("/actions/{id}/approve", s.handleApprove)
			r.Post("/actions/{id}/reject", s.handleReject)
			r.Post("/actions/{id}/execute", s.handleExecute)
			r.Post("/actions/{id}/verify", s.handleVerify)
			r.Post("/actions/{id}/rollback", s.handleRollback)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gateway.Health(r.Context()))
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.gateway.ListActions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.gateway.GetAction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, action)
}

func (s *Server) handleDeclare(w http.ResponseWriter, r *http.Request) {
	var req service.DeclareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	action, err := s.gateway.Declare(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, action)
}

type decisionRequest struct {
	Approver string `json:"approver"`
	Reason   string `json:"reason"`
	ActionID string `json:"action_id,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Approver == "" {
		respondError(w, http.StatusBadRequest, "approver required")
		return
	}
	action, err := s.gateway.Approve(r.Context(), id, req.Approver, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id": id,
		"status":    action.Status,
		"action":    action,
		"message":   "Action approved and queued for execution",
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Approver == "" {
		respondError(w, http.StatusBadRequest, "approver required")
		return
	}
	action, err := s.gateway.Reject(r.Context(), id, req.Approver, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id": id,
		"status":    action.Status,
		"action":    action,
	})
}

type executeRequest struct {
	WebhookURL string `json:"n8n_webhook_url"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	outcome, err := s.gateway.Execute(r.Context(), id, req.WebhookURL)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id":    id,
		"execution":    outcome.Execution,
		"verification": outcome.Verification,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action, err := s.gateway.VerifyAction(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id":    id,
		"verification": action.VerificationResult,
	})
}

type rollbackRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req rollbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	action, err := s.gateway.Rollback(r.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id": id,
		"rollback":  action.Rollback,
	})
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trail, err := s.gateway.AuditTrail(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action_id":   id,
		"audit_trail": trail,
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	explanation, err := s.gateway.Explain(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, explanation)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "action not found")
	case errors.Is(err, service.ErrNotApproved):
		respondError(w, http.StatusForbidden, "action not approved")
	case errors.Is(err, store.ErrRejected):
		respondError(w, http.StatusConflict, "action rejected")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
