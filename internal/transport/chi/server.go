// Package chi implements the HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
	domusage "github.com/avaolo/agknow/internal/domain/usage"
	documentuc "github.com/avaolo/agknow/internal/usecase/document"
	healthuc "github.com/avaolo/agknow/internal/usecase/health"
	hierarchyuc "github.com/avaolo/agknow/internal/usecase/hierarchy"
	pesticideuc "github.com/avaolo/agknow/internal/usecase/pesticide"
	protectionuc "github.com/avaolo/agknow/internal/usecase/protection"
	searchuc "github.com/avaolo/agknow/internal/usecase/search"
	usageuc "github.com/avaolo/agknow/internal/usecase/usage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// PageConfig bounds document listing pagination. Zero fields fall back
// to the package defaults.
type PageConfig struct {
	DefaultSize int
	MaxSize     int
}

func (p PageConfig) normalize() PageConfig {
	if p.DefaultSize <= 0 {
		p.DefaultSize = defaultPageSize
	}
	if p.MaxSize <= 0 {
		p.MaxSize = maxPageSize
	}
	return p
}

// Server exposes the knowledge base over HTTP.
type Server struct {
	search        *searchuc.Service
	pesticide     *pesticideuc.Service
	protection    *protectionuc.Service
	hierarchy     *hierarchyuc.Service
	documents     *documentuc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	pages         PageConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	pesticide *pesticideuc.Service,
	protection *protectionuc.Service,
	hierarchy *hierarchyuc.Service,
	documents *documentuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	pages PageConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:     search,
		pesticide:  pesticide,
		protection: protection,
		hierarchy:  hierarchy,
		documents:  documents,
		usage:      usage,
		health:     health,
		pages:      pages.normalize(),
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrBatchTooLarge, http.StatusBadRequest, codeBatchTooLarge),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrPrivacyViolation, http.StatusForbidden, codePrivacyViolation),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeEmbeddingQuota),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/pesticide", s.handlePesticide)
		r.Post("/search/protection", s.handleProtection)
		r.Post("/hierarchy/query", s.handleHierarchyQuery)

		r.Post("/documents", s.handleAddDocument)
		r.Post("/documents/bulk", s.handleBulkIndex)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Get("/usage", s.handleUsage)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	searchReq, err := domsearch.New(
		req.Query, domsearch.Mode(req.Mode), req.Filter.toDomain(), req.TopK, req.MinScore,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.search.Search(ctx, &searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponse{
		Items: hitsToDTO(hits),
		Total: len(hits),
	})
}

// handlePesticide handles POST /api/v1/search/pesticide.
func (s *Server) handlePesticide(w http.ResponseWriter, r *http.Request) {
	var req pesticideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Chemical == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "chemical is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.pesticide.Lookup(ctx, req.Chemical, req.Crop)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, pesticideToDTO(res))
}

// handleProtection handles POST /api/v1/search/protection.
func (s *Server) handleProtection(w http.ResponseWriter, r *http.Request) {
	var req protectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Crop == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "crop is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rec, err := s.protection.Recommend(ctx, req.Crop, req.Problem)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, protectionToDTO(rec))
}

// handleHierarchyQuery handles POST /api/v1/hierarchy/query.
func (s *Server) handleHierarchyQuery(w http.ResponseWriter, r *http.Request) {
	var req hierarchyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	tiers := make([]domhier.Tier, 0, len(req.Tiers))
	for _, name := range req.Tiers {
		tier, err := domhier.ParseTier(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		tiers = append(tiers, tier)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.hierarchy.Query(ctx, hierarchyuc.Query{
		Text: req.Query,
		Context: domhier.Context{
			FarmerID:    req.Context.FarmerID,
			CountryCode: req.Context.Country,
			Language:    req.Context.Language,
		},
		Tiers:      tiers,
		MaxPerTier: req.MaxPerTier,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, hierarchyToDTO(res))
}

// handleAddDocument handles POST /api/v1/documents.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req documentPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, created, err := s.documents.Add(ctx, documentuc.Input{
		ID:         req.ID,
		Text:       req.Text,
		Attributes: req.attributes(),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/documents/%s", doc.ID()))
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, status, documentToDTO(doc))
}

// handleBulkIndex handles POST /api/v1/documents/bulk.
func (s *Server) handleBulkIndex(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "documents must not be empty")
		return
	}

	inputs := make([]documentuc.Input, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = documentuc.Input{
			ID:         d.ID,
			Text:       d.Text,
			Attributes: d.attributes(),
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	stats, results, err := s.documents.BulkIndex(ctx, inputs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]bulkItemDTO, len(results))
	for i, res := range results {
		items[i] = bulkItemDTO{ID: res.ID}
		if res.Err != nil {
			items[i].Error = safeDomainMessage(res.Err)
		}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, bulkResponse{
		Total:     stats.Total,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Items:     items,
	})
}

// handleGetDocument handles GET /api/v1/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// handleDeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListDocuments handles GET /api/v1/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := s.pages.DefaultSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = v
	}
	if limit > s.pages.MaxSize {
		limit = s.pages.MaxSize
	}

	docs, nextCursor, err := s.documents.List(r.Context(), cursor, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	total, err := s.documents.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToDTO(docs[i])
	}

	writeJSON(w, http.StatusOK, documentListResponse{
		Items:      items,
		HasMore:    nextCursor != "",
		NextCursor: nextCursor,
		Total:      total,
	})
}

// handleUsage handles GET /api/v1/usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodDay
	if raw := r.URL.Query().Get("period"); raw != "" {
		period = domusage.Period(raw)
		if !period.IsValid() {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "period must be day or month")
			return
		}
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := usageResponse{
		Period:        string(report.Period()),
		TokensUsed:    report.TokensUsed(),
		EstimatedCost: report.EstimatedCost(),
		Budget: budgetDTO{
			TokensLimit:     report.Budget().TokensLimit(),
			TokensRemaining: report.Budget().TokensRemaining(),
			IsExhausted:     report.Budget().IsExhausted(),
		},
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if report.Budget().ResetsAt() > 0 {
		resetsAt := time.UnixMilli(report.Budget().ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrInvalidDocument,
		domain.ErrInvalidFilter,
		domain.ErrBatchTooLarge,
		domain.ErrVectorDimMismatch,
		domain.ErrPrivacyViolation,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
