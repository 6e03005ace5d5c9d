// Package api is the HTTP surface of the callback executor: the endpoint the
// scheduling service invokes when a job fires.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/djlord-it/billing-cron/internal/domain"
	"github.com/djlord-it/billing-cron/internal/executor"
	"github.com/djlord-it/billing-cron/internal/failure"
	"github.com/djlord-it/billing-cron/internal/metrics"
	"github.com/djlord-it/billing-cron/internal/payload"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

const (
	headerJobName      = "X-CloudScheduler-JobName" // set by Cloud Scheduler
	headerInvocationID = "X-Invocation-ID"

	allowedMethods      = "POST, OPTIONS"
	preflightMaxAgeSecs = "3600"
)

type Executor interface {
	Execute(ctx context.Context, invocationID string, req domain.BillingMutationRequest) (executor.Result, error)
}

// HealthChecker reports the health of an optional dependency.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// MetricsSink defines the HTTP surface metrics.
type MetricsSink interface {
	CallbackCompleted(statusClass string, duration time.Duration)
}

type Handler struct {
	exec    Executor
	secret  string // empty = signatures not required
	checks  map[string]HealthChecker
	metrics MetricsSink // optional, nil = disabled
	logger  zerolog.Logger
	newID   func() string
}

func NewHandler(exec Executor, logger zerolog.Logger) *Handler {
	return &Handler{
		exec:   exec,
		checks: make(map[string]HealthChecker),
		logger: logger.With().Str("component", "api").Logger(),
		newID:  uuid.NewString,
	}
}

// WithSecret requires every invocation to carry a valid body signature.
func (h *Handler) WithSecret(secret string) *Handler {
	h.secret = secret
	return h
}

// WithHealthChecker adds a component to verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checks[name] = c
	return h
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

// Routes returns the router. Callers may mount further routes on it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", h.health)
	r.Options("/", h.preflight)
	r.With(h.observe).Post("/", h.invoke)

	r.MethodNotAllowed(h.methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "not found", Category: string(failure.CategoryNotFound)})
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+payload.SignatureHeader)
	w.Header().Set("Access-Control-Max-Age", preflightMaxAgeSecs)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	writeError(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:    "method " + r.Method + " not allowed",
		Category: string(failure.CategoryInvalidRequest),
	})
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.metrics.CallbackCompleted(metrics.ClassifyStatus(ww.Status()), time.Since(start))
	})
}

// invoke walks one invocation through Received -> Validated ->
// Completed | Rejected. The method was already checked by the router.
func (h *Handler) invoke(w http.ResponseWriter, r *http.Request) {
	invocationID := h.newID()
	w.Header().Set(headerInvocationID, invocationID)
	log := h.logger.With().
		Str("invocation_id", invocationID).
		Str("job", r.Header.Get(headerJobName)).
		Logger()

	// Received: the content type is checked before the body is read.
	if !isJSON(r.Header.Get("Content-Type")) {
		h.reject(w, invocationID, failure.Invalid("content type must be %s", payload.ContentType))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:        "request body too large",
				Category:     string(failure.CategoryInvalidRequest),
				InvocationID: invocationID,
			})
			return
		}
		h.reject(w, invocationID, failure.Invalid("read body: %v", err))
		return
	}

	if h.secret != "" && !payload.Verify(h.secret, body, r.Header.Get(payload.SignatureHeader)) {
		log.Warn().Msg("signature mismatch")
		h.reject(w, invocationID, failure.New(failure.CategoryPermissionDenied, "invalid or missing "+payload.SignatureHeader, nil))
		return
	}

	req, err := payload.Unmarshal(body)
	if err != nil {
		h.reject(w, invocationID, failure.Invalid("invalid json body"))
		return
	}

	// Validated happens inside Execute, before the billing service is called.
	res, err := h.exec.Execute(r.Context(), invocationID, req)
	if err != nil {
		ferr := failure.Classify(err)
		log.Warn().
			Str("project", req.ProjectID).
			Str("category", string(ferr.Category)).
			Msg(ferr.Message)
		h.reject(w, invocationID, ferr)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{
		ProjectID:        res.ProjectID,
		BillingAccountID: res.BillingAccountID,
		Action:           string(res.Action),
		Message:          res.Message,
		InvocationID:     invocationID,
	})
}

// reject writes a classified failure. Unauthenticated maps to 500 here since
// the caller is a machine with no way to re-authenticate.
func (h *Handler) reject(w http.ResponseWriter, invocationID string, ferr *failure.Error) {
	writeError(w, ferr.Category.CallbackStatus(), ErrorResponse{
		Error:        ferr.Message,
		Category:     string(ferr.Category),
		Remediation:  ferr.Remediation,
		InvocationID: invocationID,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, c := range h.checks {
		if err := c.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", payload.ContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Str("component", "api").Msg("json encode error")
	}
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	if strings.TrimSpace(resp.Error) == "" {
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}
