// Package gateway exposes the face's operations over HTTP and
// WebSocket: post, score, configuration get/set with schemas, readiness,
// metrics, and the streaming endpoints for scrap and the config/ready
// watches.
package gateway

import (
	"context"
	stderrors "errors"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/face"
	"github.com/kilroybot/kilroy-face-twitter/metric"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
	"github.com/kilroybot/kilroy-face-twitter/state"
)

// maxRequestSize caps request bodies. Image payloads arrive base64
// encoded, so the cap stays well above the platform's media limit.
const maxRequestSize int64 = 16 << 20

// Server serves the face's protocol surface on one HTTP listener.
type Server struct {
	face    *face.Face
	metrics *metric.MetricsRegistry
	logger  *slog.Logger

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry mounts the registry's exposition handler at
// /metrics and enables gateway metrics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// NewServer creates a gateway around the face, listening on addr once
// started.
func NewServer(f *face.Face, addr string, opts ...Option) *Server {
	s := &Server{
		face:   f,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "gateway")

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the gateway's route table. Streaming endpoints
// (scrap and the watches) upgrade to WebSocket; everything else is
// plain request/response JSON.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /post", s.handlePost)
	mux.HandleFunc("GET /post/schema", s.handlePostSchema)
	mux.HandleFunc("POST /score", s.handleScore)
	mux.HandleFunc("GET /scrap", s.handleScrap)

	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("PUT /config", s.handleSetConfig)
	mux.HandleFunc("GET /config/schema", s.handleConfigSchema)

	mux.HandleFunc("GET /watch/config", s.handleWatchConfig)
	mux.HandleFunc("GET /watch/ready", s.handleWatchReady)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metric.Handler(s.metrics))

	return mux
}

// ListenAndServe runs the gateway until the listener fails or Shutdown
// is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var data post.Data
	if !s.decodeBody(w, r, &data) {
		return
	}

	published, err := s.face.Post(r.Context(), data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":  published.ID,
		"url": published.URL,
	})
}

func (s *Server) handlePostSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := s.face.PostSchema()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID uuid.UUID `json:"id"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	score, err := s.face.Score(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"score": score})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := s.face.GetConfig(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, config)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !s.decodeBody(w, r, &values) {
		return
	}

	config, err := s.face.SetConfig(r.Context(), values)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, config)
}

func (s *Server) handleConfigSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := s.face.ConfigSchema()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.face.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// scrapQuery parses the scrap endpoint's query parameters.
func scrapQuery(r *http.Request) (int, scraper.Window, error) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, scraper.Window{}, errors.WrapInvalid(
				fmt.Errorf("%w: limit %q", errors.ErrInvalidConfig, raw),
				"Server", "handleScrap", "limit parsing")
		}
		limit = parsed
	}

	var window scraper.Window
	for name, target := range map[string]**time.Time{
		"before": &window.Before,
		"after":  &window.After,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return 0, scraper.Window{}, errors.WrapInvalid(
				fmt.Errorf("%w: %s %q is not RFC 3339", errors.ErrInvalidConfig, name, raw),
				"Server", "handleScrap", "time bound parsing")
		}
		*target = &parsed
	}

	return limit, window, nil
}

// decodeBody reads and decodes a JSON request body, answering the error
// response itself when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if int64(len(body)) > maxRequestSize {
		s.writeErrorStatus(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxRequestSize))
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
}

// writeError maps a face error to a status code and a sanitized
// message. Full details stay in the log; clients get enough to
// distinguish retryable conditions from bad requests.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	s.writeErrorStatus(w, status, message)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error":  message,
		"status": status,
	})
}

// classify maps the error taxonomy onto HTTP semantics.
func classify(err error) (int, string) {
	var unknownCategory *component.UnknownCategoryError
	var invalidConfig *face.InvalidConfigError

	switch {
	case stderrors.Is(err, state.ErrNotReady):
		return http.StatusServiceUnavailable, "face is not ready, retry shortly"
	case stderrors.Is(err, face.ErrPostRejected):
		return http.StatusBadRequest, "post rejected by restriction"
	case stderrors.As(err, &invalidConfig):
		return http.StatusBadRequest, invalidConfig.Error()
	case stderrors.As(err, &unknownCategory):
		return http.StatusBadRequest, unknownCategory.Error()
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.IsInvalid(err):
		return http.StatusBadRequest, "invalid request"
	case stderrors.Is(err, errors.ErrConnectionTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timeout"
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
