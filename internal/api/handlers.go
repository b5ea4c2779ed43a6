package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

type submitRequest struct {
	URL         string `json:"url"`
	SubmittedBy string `json:"submitted_by"`
}

type submitResponse struct {
	Job    scrape.Job `json:"job"`
	Reused bool       `json:"reused"`
}

type batchRequest struct {
	URLs        []string `json:"urls"`
	SubmittedBy string   `json:"submitted_by"`
}

type claimRequest struct {
	WorkerID string `json:"worker_id"`
}

// strategyPayload adds the derived success rate to strategy responses so
// clients never recompute it from the counters.
type strategyPayload struct {
	scrape.Strategy
	SuccessRate float64 `json:"success_rate"`
}

func strategyBody(strat scrape.Strategy) map[string]any {
	return map[string]any{"strategy": strategyPayload{Strategy: strat, SuccessRate: strat.SuccessRate()}}
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, reused, err := s.service.Submit(r.Context(), req.URL, req.SubmittedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	writeJSON(s.logger, w, status, submitResponse{Job: job, Reused: reused})
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	batch, err := s.service.SubmitBatch(r.Context(), req.URLs, req.SubmittedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusCreated, map[string]any{"batch": batch})
}

func (s *Server) getBatchStatus(w http.ResponseWriter, r *http.Request) {
	batch, jobs, err := s.service.GetBatchStatus(r.Context(), chi.URLParam(r, "batch_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"batch": batch, "jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) claimJob(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.service.Lease(r.Context(), chi.URLParam(r, "job_id"), req.WorkerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) reportJob(w http.ResponseWriter, r *http.Request) {
	var report scrape.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	result, err := s.service.Report(r.Context(), chi.URLParam(r, "job_id"), report)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, result)
}

func (s *Server) claimNext(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.service.LeaseNext(r.Context(), req.WorkerID)
	if errors.Is(err, scrape.ErrNoPendingJobs) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.QueueStatus(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, status)
}

func (s *Server) getStrategy(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.service.GetStrategy(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, strategyBody(strategy))
}

func (s *Server) reportStrategy(w http.ResponseWriter, r *http.Request) {
	var patch scrape.StrategyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	strategy, err := s.service.ReportStrategy(r.Context(), chi.URLParam(r, "domain"), patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, strategyBody(strategy))
}

func (s *Server) updateStrategy(w http.ResponseWriter, r *http.Request) {
	var patch scrape.StrategyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	strategy, err := s.service.UpdateStrategyFields(r.Context(), chi.URLParam(r, "domain"), patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, strategyBody(strategy))
}

// writeServiceError maps service errors onto the fixed status contract.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *scrape.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(s.logger, w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, scrape.ErrNotFound):
		writeError(s.logger, w, http.StatusNotFound, "not found")
	case errors.Is(err, scrape.ErrAlreadyLocked):
		writeError(s.logger, w, http.StatusConflict, "job already locked")
	case errors.Is(err, scrape.ErrInvalidTransition):
		writeError(s.logger, w, http.StatusConflict, "job is in a terminal state")
	case errors.Is(err, scrape.ErrInvalidState):
		writeError(s.logger, w, http.StatusConflict, "job is not processing")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
	}
}
