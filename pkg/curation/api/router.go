// Package api exposes the curation operations over HTTP using chi.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	usecase "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/application/usecase"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	inframetrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/metrics"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const maxBodySize = 1 << 20 // 1MB

// actorHeader carries the authenticated operator identity, set by the
// fronting gateway.
const actorHeader = "X-Curation-Actor"

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Applier  usecase.OverrideApplier
	Operator usecase.BulkOperator
	Guard    *guard.Guard
	Recorder metrics.MetricRecorder
}

// NewRouter builds the chi router for the curation API.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if promRecorder, ok := deps.Recorder.(*inframetrics.PrometheusRecorder); ok {
		r.Handle("/metrics", promhttp.HandlerFor(promRecorder.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Route("/pages/{pageID}", func(r chi.Router) {
			r.Post("/manual-process", handleSingleAction(deps, "manual_process"))
			r.Post("/manual-skip", handleSingleAction(deps, "manual_skip"))
			r.Post("/update-priority", handleSingleAction(deps, "update_priority"))
			r.Post("/reset-status", handleSingleAction(deps, "reset_status"))
			r.Post("/override-filter", handleSingleAction(deps, "override_filter"))
			r.Post("/restore-filter", handleSingleAction(deps, "restore_filter"))
		})

		r.Post("/pages/bulk-actions", handleBulkSubmit(deps))
		r.Route("/bulk-operations/{executionID}", func(r chi.Router) {
			r.Get("/status", handleBulkStatus(deps))
			r.Post("/pause", handleBulkControl(deps, "pause"))
			r.Post("/resume", handleBulkControl(deps, "resume"))
			r.Post("/cancel", handleBulkControl(deps, "cancel"))
		})
	})

	return r
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get(actorHeader); actor != "" {
		return actor
	}
	return "anonymous"
}

// errorBody is the JSON error envelope. The rate-limit fields are only set
// on RATE_LIMIT_EXCEEDED responses.
type errorBody struct {
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Limit      int    `json:"limit,omitempty"`
	Window     int    `json:"window,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to encode response body: %v", err)
	}
}

// writeError maps a domain error to the HTTP error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := exception.CodeOf(err)
	status := http.StatusInternalServerError
	body := errorBody{Message: exception.ExtractErrorMessage(err)}
	switch {
	case errors.Is(err, exception.ErrRateLimited):
		status = http.StatusTooManyRequests
		var limitErr *guard.LimitError
		if errors.As(err, &limitErr) {
			retryAfter := int(limitErr.RetryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			body.Limit = limitErr.Limit
			body.Window = limitErr.WindowSeconds
			body.RetryAfter = retryAfter
		}
		code = exception.CodeRateLimitExceeded
	case code == exception.CodePageNotFound || code == exception.CodeExecutionNotFound:
		status = http.StatusNotFound
	case code == exception.CodeInvalidParameter:
		status = http.StatusBadRequest
	case code == exception.CodeInvalidTransition || code == exception.CodeConcurrentModification:
		status = http.StatusConflict
	}
	body.ErrorCode = string(code)
	writeJSON(w, status, body)
}
