// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/zen-systems/promptgate/pkg/apperr"
	"github.com/zen-systems/promptgate/pkg/imagen"
	"github.com/zen-systems/promptgate/pkg/metrics"
	"github.com/zen-systems/promptgate/pkg/orchestrator"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/registry"
)

// Server handles the gateway's HTTP surface.
type Server struct {
	orch     *orchestrator.Orchestrator
	pipeline *imagen.Pipeline
	registry *registry.Registry
	metrics  *metrics.Metrics
	imageFS  afero.Fs
	log      *zap.Logger

	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithImagePipeline enables the POST /images endpoint.
func WithImagePipeline(p *imagen.Pipeline) Option {
	return func(s *Server) { s.pipeline = p }
}

// WithImageFS serves persisted artifacts from fs at GET /images/.
func WithImageFS(fs afero.Fs, root string) Option {
	return func(s *Server) {
		s.imageFS = afero.NewBasePathFs(fs, root)
	}
}

// New creates a server. metrics may be nil to disable /metrics.
func New(addr string, orch *orchestrator.Orchestrator, reg *registry.Registry, m *metrics.Metrics, log *zap.Logger, shutdownTimeout time.Duration, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		orch:            orch,
		registry:        reg,
		metrics:         m,
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /images", s.handleImages)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /models", s.handleModels)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	if s.imageFS != nil {
		mux.Handle("GET /images/", http.StripPrefix("/images/",
			http.FileServer(afero.NewHttpFs(s.imageFS))))
	}
	return s.withRequestID(s.withAccessLog(mux))
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}

type chatRequest struct {
	Message  *string            `json:"message"`
	History  []provider.Message `json:"history,omitempty"`
	UserID   string             `json:"userId,omitempty"`
	Settings *chatSettings      `json:"settings,omitempty"`
}

type chatSettings struct {
	Model    string `json:"model,omitempty"`
	Category string `json:"category,omitempty"`
}

type classificationBody struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type chatResponse struct {
	Content        string             `json:"content"`
	ModelUsed      string             `json:"modelUsed"`
	AutoRouted     bool               `json:"autoRouted"`
	FallbackUsed   bool               `json:"fallbackUsed"`
	Classification classificationBody `json:"classification"`
	Command        string             `json:"command,omitempty"`
	CodeDetected   bool               `json:"codeDetected,omitempty"`
	ResponseTimeMs int64              `json:"responseTimeMs"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.New(apperr.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}

	message := ""
	if req.Message != nil {
		message = *req.Message
	}
	if err := orchestrator.ValidateMessage(message, req.Message != nil); err != nil {
		s.writeError(w, r, err)
		return
	}

	chatReq := orchestrator.ChatRequest{
		Message: message,
		History: req.History,
		UserID:  req.UserID,
	}
	if req.Settings != nil {
		chatReq.Model = req.Settings.Model
		chatReq.Category = registry.Category(req.Settings.Category)
		if chatReq.Category != "" && !chatReq.Category.Valid() {
			s.writeError(w, r, apperr.New(apperr.CodeInvalidRequest, "unknown category "+req.Settings.Category))
			return
		}
	}

	res, err := s.orch.Chat(r.Context(), chatReq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Content:      res.Content,
		ModelUsed:    res.ModelUsed,
		AutoRouted:   res.AutoRouted,
		FallbackUsed: res.FallbackUsed,
		Classification: classificationBody{
			Category:   string(res.Classification.Category),
			Confidence: res.Classification.Confidence,
			Reasoning:  res.Classification.Reasoning,
		},
		Command:        string(res.Command),
		CodeDetected:   res.CodeDetected,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
	})
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId,omitempty"`
	Style  string `json:"style,omitempty"`
}

type imageResponse struct {
	URL            string `json:"url"`
	EnhancedPrompt string `json:"enhancedPrompt"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	ElapsedMs      int64  `json:"elapsedMs"`
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeError(w, r, apperr.New(apperr.CodeInvalidRequest, "image generation is not configured"))
		return
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.New(apperr.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	if req.Prompt == "" {
		s.writeError(w, r, apperr.New(apperr.CodeMissingMessage, "prompt is required"))
		return
	}

	res, err := s.pipeline.Generate(r.Context(), imagen.Request{
		Prompt: req.Prompt,
		UserID: req.UserID,
		Style:  imagen.Style(req.Style),
	})
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.CodeOf(err))
		}
		s.metrics.ImageRequests.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, imageResponse{
		URL:            res.URL,
		EnhancedPrompt: res.EnhancedPrompt,
		Provider:       res.Provider,
		Model:          res.Model,
		ElapsedMs:      res.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	def := s.registry.Default()
	models := s.registry.All()
	out := make([]modelBody, len(models))
	for i, m := range models {
		out[i] = modelBody{
			ID:        m.ID,
			Name:      m.Name,
			Provider:  m.Provider,
			Category:  string(m.Category),
			Available: m.Available,
			Default:   m.ID == def.ID,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	if status >= 500 {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err))
	} else {
		s.log.Warn("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err))
	}

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	s.writeJSON(w, status, errorBody{Error: string(code), Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
