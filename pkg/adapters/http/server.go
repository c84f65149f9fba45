package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/adapters/dialogflow"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/aretw0/dialogic/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBodySize bounds every request body.
const MaxBodySize = 1 << 20

// Engine defines the interface for the Dialogic rendering core.
type Engine interface {
	Render(ctx context.Context, name string, env map[string]any, opts ...realizer.RenderOption) (*realizer.Result, error)
	RenderSession(ctx context.Context, sessionID, name string, env map[string]any) (*realizer.Result, error)
	StartSession(ctx context.Context) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Check(name string, env map[string]any) error
	Catalog() *domain.Catalog
	Watch(ctx context.Context) (<-chan string, error)
}

// Server serves the NLG API over an Engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics    http.Handler
	apiVersion string
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler serves h on /metrics instead of the default
// prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// RenderRequest is the body of /nlg, /validate and /sessions/{id}/render.
type RenderRequest struct {
	TemplateName string         `json:"templateName"`
	Env          map[string]any `json:"env,omitempty"`
}

// RenderResponse is the reply of a render. On failure Response holds the error message.
type RenderResponse struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
}

// ValidateResponse reports the required arguments missing from an env.
type ValidateResponse struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
}

// TemplateInfo describes one intent.
type TemplateInfo struct {
	Name        string                     `json:"name"`
	Domain      string                     `json:"domain"`
	Description string                     `json:"description,omitempty"`
	Args        map[string]domain.Argument `json:"args,omitempty"`
}

// SessionEvent is broadcast to session subscribers after each render.
type SessionEvent struct {
	Template string `json:"template"`
	Text     string `json:"text"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}

	doc, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s.apiVersion = doc.Info.Version
	validate, err := requestValidator(doc, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(limitBody)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(Spec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Handle("/metrics", s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/", s.GetRoot)
		r.Post("/nlg", s.RenderTemplate)
		r.Post("/sessions", s.CreateSession)
		r.Delete("/sessions/{sessionId}", s.DeleteSession)
		r.Post("/sessions/{sessionId}/render", s.RenderSession)
		r.Post("/validate", s.ValidateParameters)
		r.Get("/templates", s.ListTemplates)
		r.Post("/dialogflow", s.Dialogflow)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
	})

	return enableCORS(r), nil
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Dialogic API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetRoot handles the GET / request.
func (s *Server) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "\nHello from dialogic!\n")
}

// RenderTemplate handles the POST /nlg request.
func (s *Server) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeRender(w, r)
	if !ok {
		return
	}

	s.logger.Info("NLG request received", "template", body.TemplateName)
	res, err := s.Engine.Render(r.Context(), body.TemplateName, body.Env)
	s.writeRender(w, body.TemplateName, res, err)
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.Engine.StartSession(r.Context())
	if err != nil {
		s.logger.Error("Session creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

// DeleteSession handles the DELETE /sessions/{sessionId} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := s.Engine.DeleteSession(r.Context(), id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Error("Session deletion failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenderSession handles the POST /sessions/{sessionId}/render request.
func (s *Server) RenderSession(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeRender(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "sessionId")
	res, err := s.Engine.RenderSession(r.Context(), id, body.TemplateName, body.Env)
	if err == nil {
		if data, encErr := json.Marshal(SessionEvent{Template: body.TemplateName, Text: res.Text}); encErr == nil {
			s.Streams.Broadcast(id, string(data))
		}
	}
	s.writeRender(w, body.TemplateName, res, err)
}

// ValidateParameters handles the POST /validate request.
func (s *Server) ValidateParameters(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	err := s.Engine.Check(body.TemplateName, body.Env)
	var missing *realizer.MissingArgumentsError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Missing: missing.Missing})
	case errors.Is(err, domain.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// ListTemplates handles the GET /templates request.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Templates(s.Engine.Catalog()))
}

// Templates lists the intents of c sorted by name.
func Templates(c *domain.Catalog) []TemplateInfo {
	out := make([]TemplateInfo, 0, len(c.Schema))
	for _, name := range c.Intents() {
		schema := c.Schema[name]
		owner, _ := c.Owner(name)
		out = append(out, TemplateInfo{
			Name:        name,
			Domain:      owner,
			Description: schema.Description,
			Args:        schema.Args,
		})
	}
	return out
}

// Dialogflow handles the POST /dialogflow fulfillment webhook.
func (s *Server) Dialogflow(w http.ResponseWriter, r *http.Request) {
	var body dialogflow.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	req, err := dialogflow.TranslateRequest(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	env, err := runner.SanitizeEnv(req.Parameters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var opts []history.Option
	if req.History != nil {
		opts = append(opts, history.FromSnapshot(*req.History))
	}
	h, err := history.New(opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid history context: %w", err))
		return
	}

	res, err := s.Engine.Render(r.Context(), req.Intent, env, realizer.UsingHistory(h))
	if err != nil {
		s.logger.Error("Dialogflow render failed", "intent", req.Intent, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogflow.TranslateResponse(req, res.Text, &res.History))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	c := s.Engine.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "dialogic-http",
		"version":     dialogic.Version,
		"api_version": s.apiVersion,
		"domains":     len(c.Domains),
		"intents":     len(c.Schema),
	})
}

func (s *Server) decodeRender(w http.ResponseWriter, r *http.Request) (RenderRequest, bool) {
	var body RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("Render: Invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return body, false
	}
	env, err := runner.SanitizeEnv(body.Env)
	if err != nil {
		s.logger.Warn("Render: Input rejected", "template", body.TemplateName, "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid input: %w", err))
		return body, false
	}
	body.Env = env
	return body, true
}

func (s *Server) writeRender(w http.ResponseWriter, name string, res *realizer.Result, err error) {
	if err != nil {
		s.logger.Error("NLG request failed", "template", name, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, RenderResponse{Response: err.Error(), Success: false})
		return
	}
	s.logger.Info("NLG request served", "template", name, "text", res.Text)
	writeJSON(w, http.StatusOK, RenderResponse{Response: res.Text, Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if subs, ok := sm.subscribers[sessionID]; ok {
		sm.logger.Debug("StreamManager: Broadcasting", "session_id", sessionID, "subscribers", len(subs))
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// Without a sessionId it streams template reloads; with one it streams the
// renders of that session.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var events <-chan string
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		ch, err := s.Engine.Watch(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("watch error: %w", err))
			return
		}
		events = ch
		s.logger.Info("SSE: Subscribing to template reloads")
	} else {
		ch, cancel := s.Streams.Subscribe(sessionID)
		defer cancel()
		events = ch
		s.logger.Info("SSE: Subscribing to session renders", "session_id", sessionID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
