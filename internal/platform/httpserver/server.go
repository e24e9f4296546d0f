package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	publishingservice "letterbox/contexts/newsletter/publishing-service"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	newsletterhttp "letterbox/contexts/newsletter/publishing-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	_ "letterbox/internal/platform/httpserver/docs"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	mux        *http.ServeMux
	logger     *zap.Logger
	addr       string
	newsletter publishingservice.Module
	auth       Authenticator
}

func New(
	newsletter publishingservice.Module,
	auth Authenticator,
	logger *zap.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		newsletter: newsletter,
		auth:       auth,
	}
	s.registerRoutes()
	return s
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		zap.String("event", "http_server_starting"),
		zap.String("module", "internal/platform/httpserver"),
		zap.String("layer", "platform"),
		zap.String("addr", s.addr),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping",
		zap.String("event", "http_server_stopping"),
		zap.String("module", "internal/platform/httpserver"),
		zap.String("layer", "platform"),
	)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /health_check", s.handleHealthCheck)
	s.mux.HandleFunc("POST /admin/newsletters", s.handlePublishIssue)
	s.mux.HandleFunc("GET /admin/newsletters/{issue_id}", s.handleGetIssue)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newsletterhttp.HealthResponse{Status: "ok"})
}

func (s *Server) handlePublishIssue(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req newsletterhttp.PublishIssueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, replayed, err := s.newsletter.Handler.PublishIssueHandler(
		r.Context(),
		ownerID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeNewsletterDomainError(w, err)
		return
	}
	if replayed {
		s.logger.Debug("replaying stored response",
			zap.String("event", "http_publish_issue_replayed"),
			zap.String("module", "internal/platform/httpserver"),
			zap.String("layer", "platform"),
			zap.String("owner_id", ownerID),
		)
	}
	writeSavedResponse(w, resp)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireOwner(w, r); !ok {
		return
	}

	resp, err := s.newsletter.Handler.GetIssueHandler(r.Context(), r.PathValue("issue_id"))
	if err != nil {
		writeNewsletterDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, err := s.auth.Authenticate(r.Header.Get("Authorization"))
	if err != nil {
		s.logger.Debug("request rejected by authenticator",
			zap.String("event", "http_unauthorized"),
			zap.String("module", "internal/platform/httpserver"),
			zap.String("layer", "platform"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeNewsletterError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return "", false
	}
	return ownerID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeNewsletterError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

// writeSavedResponse writes a stored response without re-encoding it.
// Repeated header names are all written.
func writeSavedResponse(w http.ResponseWriter, resp entities.SavedResponse) {
	header := w.Header()
	for _, pair := range resp.Headers {
		header.Add(pair.Name, string(pair.Value))
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
