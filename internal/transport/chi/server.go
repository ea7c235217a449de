// Package chi exposes the usagemeter HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
	"github.com/orbital-cloud/usagemeter/internal/repository/snapshot"
	healthuc "github.com/orbital-cloud/usagemeter/internal/usecase/health"
	usageuc "github.com/orbital-cloud/usagemeter/internal/usecase/usage"
)

// Error codes in API responses.
const (
	CodeUpstreamError       = "upstream_error"
	CodeReportUnresolved    = "report_unresolved"
	CodeInvalidInput        = "invalid_input"
	CodePersistenceDisabled = "persistence_disabled"
	CodeBadRequest          = "bad_request"
	CodeInternalError       = "internal_error"
)

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Usage []domain.UsageItem `json:"usage"`
}

// SnapshotsResponse is the body of GET /usage/snapshots.
type SnapshotsResponse struct {
	Date      string              `json:"date"`
	Snapshots []snapshot.Snapshot `json:"snapshots"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the usage API.
type Server struct {
	usage         *usageuc.Service
	snapshots     *snapshot.Store
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. snapshots can be nil
// (persistence disabled).
func NewServer(
	usage *usageuc.Service,
	snapshots *snapshot.Store,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		usage:     usage,
		snapshots: snapshots,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrReportUnresolved, http.StatusBadGateway, CodeReportUnresolved),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, CodeUpstreamError),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput),
		sentinelHandler(domain.ErrPersistenceDisabled, http.StatusNotImplemented, CodePersistenceDisabled),
	}
	return s
}

// Routes mounts all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/usage", s.GetUsage)
	r.Get("/usage/snapshots", s.GetSnapshots)
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
}

// GetUsage handles GET /usage. report_name is omitted entirely when a
// message had no resolvable report, never emitted as null.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	items, err := s.usage.Aggregate(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if items == nil {
		items = []domain.UsageItem{}
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: items})
}

// GetSnapshots handles GET /usage/snapshots?date=YYYY-MM-DD.
// Defaults to today (UTC). Returns an empty list when no snapshots exist.
func (s *Server) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.handleDomainError(w, domain.ErrPersistenceDisabled)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	}

	snaps, err := s.snapshots.ListByDate(r.Context(), date)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SnapshotsResponse{Date: date, Snapshots: snaps})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrReportUnresolved,
		domain.ErrUpstream,
		domain.ErrInvalidInput,
		domain.ErrPersistenceDisabled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
