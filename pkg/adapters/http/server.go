package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aretw0/escrow"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
	"github.com/go-chi/chi/v5"
)

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "escrow-http",
		"version": strings.TrimSpace(escrow.Version),
	})
}

// ListStages handles the GET /stages request.
func (s *Server) ListStages(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"stages": s.Tracker.Catalog().All()})
}

// ListTransactions handles the GET /transactions request.
func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.Tracker.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// OpenTransaction handles the POST /transactions request.
func (s *Server) OpenTransaction(w http.ResponseWriter, r *http.Request) {
	var body tracker.OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		s.logger.Warn("OpenTransaction: Invalid request body", "err", err)
		return
	}

	tx, err := s.Tracker.Open(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tx)
}

type transactionResponse struct {
	*domain.Transaction
	Stage domain.StageDefinition `json:"stage"`
}

// GetTransaction handles the GET /transactions/{id} request.
func (s *Server) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.Tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.withStage(tx))
}

type timelineResponse struct {
	TransactionID string                   `json:"transactionId"`
	Current       domain.StageDefinition   `json:"current"`
	Completed     []domain.StageDefinition `json:"completed"`
	Upcoming      []domain.StageDefinition `json:"upcoming"`
	Progress      []stages.Progress        `json:"progress"`
}

// GetTimeline handles the GET /transactions/{id}/timeline request.
func (s *Server) GetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := s.Tracker.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, timelineResponse{
		TransactionID: tl.Transaction.ID,
		Current:       tl.Current,
		Completed:     tl.Completed,
		Upcoming:      tl.Upcoming,
		Progress:      tl.Progress,
	})
}

// SetStatus handles the PATCH /transactions/{id}/status request.
func (s *Server) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status *domain.StageID `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == nil {
		s.writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}

	tx, err := s.Tracker.SetStatus(r.Context(), chi.URLParam(r, "id"), *body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.withStage(tx))
}

type taskUpdateResponse struct {
	Success         bool            `json:"success"`
	Task            *domain.Task    `json:"task"`
	AdvancedToStage *domain.StageID `json:"advancedToStage"`
	AdvancedToLabel *string         `json:"advancedToLabel,omitempty"`
}

// UpdateTask handles the PATCH /tasks/{id} request.
func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Completed == nil {
		s.writeMessage(w, http.StatusBadRequest, "completed must be a boolean")
		return
	}

	res, err := s.Tracker.UpdateTask(r.Context(), chi.URLParam(r, "id"), *body.Completed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := taskUpdateResponse{Success: true, Task: res.Task}
	if res.AdvancedTo != nil {
		resp.AdvancedToStage = &res.AdvancedTo.ID
		resp.AdvancedToLabel = &res.AdvancedTo.Label
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) withStage(tx *domain.Transaction) transactionResponse {
	def, ok := s.Tracker.Catalog().Definition(tx.Status)
	if !ok {
		def = domain.StageDefinition{ID: tx.Status, Label: stages.Label(tx.Status)}
	}
	return transactionResponse{Transaction: tx, Stage: def}
}

// -- Helpers --

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStage), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateTransaction), errors.Is(err, domain.ErrStatusConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		s.writeMessage(w, code, "Internal server error")
		return
	}
	s.writeMessage(w, code, err.Error())
}

func (s *Server) writeMessage(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
