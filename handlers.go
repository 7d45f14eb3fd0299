// handlers.go is the HTTP surface of the service: public PDF retrieval
// plus privileged operator endpoints behind bearer-token auth.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"pdf_backend/artifactcache"
	"pdf_backend/auth"
	"pdf_backend/builder"
	"pdf_backend/db"
	"pdf_backend/logging"
	"pdf_backend/metadata"
	"pdf_backend/metrics"
	"pdf_backend/ocr"
	"pdf_backend/shutdown"

	"go.uber.org/zap"
)

// Server is the HTTP handler organism composing the builder pipeline with
// auth, history, metrics and graceful-shutdown tracking.
type Server struct {
	builder *builder.Builder
	cache   *artifactcache.Cache
	history *db.Repository // nil disables the history endpoints
	metrics *metrics.Store // nil disables the stats endpoint
	guard   *auth.Guard    // nil disables the privileged endpoints
	manager *shutdown.Manager
	logger  *logging.Logger
}

// ServerDeps collects the Server's collaborators. History, Metrics and
// Guard are optional.
type ServerDeps struct {
	Builder *builder.Builder
	Cache   *artifactcache.Cache
	History *db.Repository
	Metrics *metrics.Store
	Guard   *auth.Guard
	Manager *shutdown.Manager
	Logger  *logging.Logger
}

// NewServer creates the HTTP server handler.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Builder == nil || deps.Cache == nil || deps.Manager == nil {
		return nil, fmt.Errorf("server: builder, cache and shutdown manager are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("server: logger is required")
	}

	return &Server{
		builder: deps.Builder,
		cache:   deps.Cache,
		history: deps.History,
		metrics: deps.Metrics,
		guard:   deps.Guard,
		manager: deps.Manager,
		logger:  deps.Logger.Named("http"),
	}, nil
}

// Routes returns the configured mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /pdf/exists/{id}", s.handleExists)
	mux.HandleFunc("GET /pdf/text/{id}", s.handleText)
	mux.HandleFunc("GET /pdf/{ocr}/{id}", s.handlePDF)

	if s.guard != nil {
		mux.HandleFunc("GET /admin/stats", s.guard.RequireToken(s.handleStats))
		mux.HandleFunc("GET /admin/history", s.guard.RequireToken(s.handleHistory))
		mux.HandleFunc("GET /admin/history/{id}", s.guard.RequireToken(s.handleHistoryByDocument))
		mux.HandleFunc("POST /admin/cache/bust/{id}", s.guard.RequireToken(s.handleCacheBust))
	}

	return mux
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePDF serves GET /pdf/{ocr}/{id}: builds (or reads from cache) the
// requested artifact and streams it. The {ocr} segment is "true" or
// "false"; query parameters ocr_language, ocr_engine and ocr_source tune
// the OCR pass.
func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	ocrEnabled, err := strconv.ParseBool(r.PathValue("ocr"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "ocr segment must be true or false")
		return
	}

	query := r.URL.Query()
	if lang := query.Get("ocr_language"); lang != "" {
		if err := ocr.ValidateLanguage(lang); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid ocr_language")
			return
		}
	}
	if engine := query.Get("ocr_engine"); engine != "" {
		if err := ocr.ValidateEngine(engine); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid ocr_engine")
			return
		}
	}
	switch source := query.Get("ocr_source"); ocr.SourceMode(source) {
	case "", ocr.SourceUpload, ocr.SourceURL:
	default:
		s.writeError(w, http.StatusBadRequest, "ocr_source must be upload or url")
		return
	}

	privileged, ok := s.checkPrivilege(w, r)
	if !ok {
		return
	}

	opts := builder.Options{
		OCREnabled: ocrEnabled,
		Language:   query.Get("ocr_language"),
		Engine:     query.Get("ocr_engine"),
		Source:     ocr.SourceMode(query.Get("ocr_source")),
		Privileged: privileged,
	}

	var result *builder.Result
	err = s.manager.WrapOperation(r.Context(), "build-pdf", func(ctx context.Context) error {
		var buildErr error
		result, buildErr = s.builder.Build(ctx, documentID, opts)
		return buildErr
	})
	if err != nil {
		s.writeBuildError(w, r, documentID, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	if _, err := w.Write(result.Data); err != nil {
		s.logger.Warn("failed to stream PDF",
			zap.String("document_id", documentID),
			zap.Error(err))
	}
}

// handleExists serves GET /pdf/exists/{id} with the legacy probe payload.
func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if err := metadata.ValidateDocumentID(documentID); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"pdf_file_exists": s.builder.Exists(documentID)})
}

// handleText serves GET /pdf/text/{id}: the sibling text artifact when a
// build has produced one.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	text, ok, err := s.builder.Text(documentID)
	if err != nil {
		if errors.Is(err, metadata.ErrInvalidDocumentID) || errors.Is(err, metadata.ErrEmptyDocumentID) {
			s.writeError(w, http.StatusBadRequest, "invalid document id")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read text artifact")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no text artifact for this document")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(text)
}

// handleStats serves GET /admin/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeError(w, http.StatusNotFound, "stats not enabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot(20))
}

// handleHistory serves GET /admin/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.QueryRecentBuilds(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"builds": records})
}

// handleHistoryByDocument serves GET /admin/history/{id}.
func (s *Server) handleHistoryByDocument(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history not enabled")
		return
	}

	documentID := r.PathValue("id")
	if err := metadata.ValidateDocumentID(documentID); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	records, err := s.history.QueryBuildsByDocument(r.Context(), documentID, 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"builds": records})
}

// handleCacheBust serves POST /admin/cache/bust/{id}: drops every cached
// variant so the next request rebuilds.
func (s *Server) handleCacheBust(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if err := metadata.ValidateDocumentID(documentID); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := s.cache.Bust(documentID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "cache bust failed")
		return
	}

	s.logger.Info("cache busted", zap.String("document_id", documentID))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "busted"})
}

// checkPrivilege inspects the optional Authorization header on a public
// route. No header means a normal request. A presented token must verify
// against the admin hash: a wrong token is rejected rather than silently
// downgraded, so callers notice a misconfigured credential. Verification
// goes through the guard so the public route shares the per-IP failure
// accounting of the admin routes.
func (s *Server) checkPrivilege(w http.ResponseWriter, r *http.Request) (privileged, ok bool) {
	if r.Header.Get("Authorization") == "" {
		return false, true
	}
	if s.guard == nil {
		s.writeError(w, http.StatusUnauthorized, "privileged access not configured")
		return false, false
	}

	if err := s.guard.Authorize(r); err != nil {
		var limited *auth.RateLimitError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
			s.writeError(w, http.StatusTooManyRequests, "too many failed attempts")
			return false, false
		}
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return false, false
	}
	return true, true
}

// writeBuildError maps pipeline errors onto HTTP statuses.
func (s *Server) writeBuildError(w http.ResponseWriter, r *http.Request, documentID string, err error) {
	switch {
	case errors.Is(err, shutdown.ErrTrackerClosed):
		s.writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	case errors.Is(err, metadata.ErrInvalidDocumentID), errors.Is(err, metadata.ErrEmptyDocumentID):
		s.writeError(w, http.StatusBadRequest, "invalid document id")
	case errors.Is(err, metadata.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, metadata.ErrMetadataIncomplete):
		s.writeError(w, http.StatusUnprocessableEntity, "document has no renderable pages")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		s.logger.Error("build failed",
			zap.String("document_id", documentID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to generate PDF")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
