package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quietqueue/jobqueue/internal/config"
	"github.com/quietqueue/jobqueue/internal/queuecore"
)

// Server wires the Admission Adapter's handlers to the Engine and Inspector.
type Server struct {
	engine    *queuecore.Engine
	inspector *queuecore.Inspector
	metrics   *Metrics
	cfg       config.Gateway
	now       func() int64
}

// NewServer constructs a Server. now defaults to the wall clock; tests may
// override it for deterministic createdAt stamping.
func NewServer(engine *queuecore.Engine, inspector *queuecore.Inspector, cfg config.Gateway, now func() int64) *Server {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Server{engine: engine, inspector: inspector, metrics: NewMetrics(), cfg: cfg, now: now}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"service":   "jobqueue-gateway",
		"env":       s.cfg.Environment,
		"requestId": requestIDFrom(r),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"environment":    s.cfg.Environment,
		"maxJobsPerTick": s.cfg.MaxJobsPerTick,
		"leaseMs":        queuecore.LeaseMS,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	id := uuid.NewString()
	job, err := s.engine.Enqueue(queuecore.EnqueueInput{
		ID:          id,
		Type:        req.Type,
		Target:      req.Target,
		CreatedAt:   s.now(),
		MaxAttempts: req.MaxAttempts,
	})
	switch {
	case errors.Is(err, queuecore.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	case errors.Is(err, queuecore.ErrConflict):
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "enqueue_failed")
		return
	}

	s.metrics.recordEnqueued()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":       true,
		"accepted": true,
		"job":      toJobView(job),
	})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Dequeue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dequeue_failed")
		return
	}
	if res.Job == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": nil})
		return
	}

	s.metrics.recordLeased()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"job":        toJobView(*res.Job),
		"leaseUntil": res.LeaseUntil,
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	if err := s.engine.Complete(req.ID, req.Result); err != nil {
		writeError(w, http.StatusInternalServerError, "complete_failed")
		return
	}

	s.metrics.recordCompleted()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	res, err := s.engine.Fail(req.ID, req.Error)
	switch {
	case errors.Is(err, queuecore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "fail_failed")
		return
	}

	if res.Retried {
		s.metrics.recordRetried()
	} else {
		s.metrics.recordFailed()
	}

	body := map[string]any{
		"ok":          true,
		"retried":     res.Retried,
		"attempts":    res.Attempts,
		"maxAttempts": res.MaxAttempts,
	}
	if res.NextRunAt != nil {
		body["nextRunAt"] = *res.NextRunAt
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	var req requeueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	job, err := s.engine.Requeue(req.ID)
	switch {
	case errors.Is(err, queuecore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return
	case errors.Is(err, queuecore.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "requeue_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": toJobView(job)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	job, err := s.inspector.Get(id)
	if errors.Is(err, queuecore.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": nil})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": toJobView(job)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.inspector.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stats": toStatEntries(stats)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := queuecore.ListOptions{Cursor: q.Get("cursor"), Limit: queuecore.NoLimitSpecified}

	if raw := q.Get("status"); raw != "" {
		status := queuecore.Status(raw)
		opts.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.Limit = v
		}
	}

	page, err := s.inspector.List(opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	views := make([]jobView, len(page.Jobs))
	for i, j := range page.Jobs {
		views[i] = toJobView(j)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"items":      views,
		"nextCursor": page.NextCursor,
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BeforeMS == 0 {
		writeError(w, http.StatusBadRequest, "missing beforeMs")
		return
	}

	deleted, err := s.inspector.Purge(req.BeforeMS)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "purge_failed")
		return
	}

	statsAfter, err := s.inspector.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "purge_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"beforeMs":   req.BeforeMS,
		"deleted":    deleted,
		"statsAfter": toStatEntries(statsAfter),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

// notFoundHandler implements spec.md §7's unknown-path 404.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found")
}

// methodNotAllowedHandler implements spec.md §7's wrong-verb 405.
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
}
