package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/simsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/simsearch/internal/logger"
	healthuc "github.com/kailas-cloud/simsearch/internal/usecase/health"
	"github.com/kailas-cloud/simsearch/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, catalog and health endpoints.
type Server struct {
	search        Searcher
	catalog       Catalog
	health        HealthChecker
	defaultK      int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultK applies when a search omits k.
func NewServer(search Searcher, catalog Catalog, health HealthChecker, defaultK int, logger *zap.Logger) *Server {
	s := &Server{
		search:   search,
		catalog:  catalog,
		health:   health,
		defaultK: defaultK,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownAttribute, http.StatusBadRequest, CodeUnknownAttribute),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrNoAttributes, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidWeight, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidMode, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidTopK, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidQueryValue, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrMalformedValue, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(db.ErrInvalidIdentifier, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrUnavailable, http.StatusBadGateway, CodeSourceUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.Search)
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", s.ListAttributes)
		r.Post("/", s.MountAttribute)
		r.Delete("/{name}", s.RemoveAttribute)
	})
	r.Post("/pivot", s.BuildPivot)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	queries := make([]attribute.Query, len(body.Queries))
	for i, q := range body.Queries {
		queries[i] = queryFromDTO(q)
	}
	k := body.K
	if k == 0 {
		k = s.defaultK
	}
	req, err := request.New(queries, k, mode.Mode(body.Algorithm))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responseToDTO(resp, req.Mode() == mode.Pivot))
}

// ListAttributes handles GET /catalog.
func (s *Server) ListAttributes(w http.ResponseWriter, _ *http.Request) {
	infos := s.catalog.List()
	items := make([]AttributeResponse, len(infos))
	for i, info := range infos {
		items[i] = infoToDTO(info)
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Items: items})
}

// MountAttribute handles POST /catalog.
func (s *Server) MountAttribute(w http.ResponseWriter, r *http.Request) {
	var body MountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Attribute name is required")
		return
	}

	info, err := s.catalog.Mount(r.Context(), specFromDTO(body))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, infoToDTO(info))
}

// RemoveAttribute handles DELETE /catalog/{name}.
func (s *Server) RemoveAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.catalog.Remove(name); err != nil {
		if errors.Is(err, domain.ErrUnknownAttribute) {
			writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BuildPivot handles POST /pivot.
func (s *Server) BuildPivot(w http.ResponseWriter, r *http.Request) {
	var body PivotRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	space, err := s.catalog.BuildPivot(r.Context(), body.Attributes)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PivotResponse{
		Attributes: space.Attributes(),
		Dim:        space.Dim(),
		Entries:    space.Len(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:   string(report.Status),
		Version:  version.String(),
		Checks:   checks,
		Errors:   report.Errors,
		Affected: report.Affected,
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

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client message without exposing internals.
// Attribute errors keep the attribute name; other errors collapse to their sentinel.
func safeDomainMessage(err error) string {
	var ae *domain.AttributeError
	if errors.As(err, &ae) {
		return ae.Error()
	}
	sentinels := []error{
		domain.ErrUnknownAttribute,
		domain.ErrDimensionMismatch,
		domain.ErrNoAttributes,
		domain.ErrInvalidWeight,
		domain.ErrInvalidMode,
		domain.ErrInvalidTopK,
		domain.ErrInvalidQueryValue,
		domain.ErrMalformedValue,
		db.ErrInvalidIdentifier,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrUnavailable,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	if errors.Is(err, context.Canceled) {
		log.Info("request canceled", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
