package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/aretw0/dialogic/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CatalogURI is the resource exposing the loaded intents.
const CatalogURI = "dialogic://catalog"

// RenderResponse aligns with the OpenAPI schema and provides a unified structure across adapters.
type RenderResponse struct {
	Response string `json:"response" jsonschema_description:"The realized text, or the error message on failure"`
	Success  bool   `json:"success" jsonschema_description:"Whether the template rendered"`
}

// ValidateResponse reports required arguments missing from an env.
type ValidateResponse struct {
	Valid   bool     `json:"valid" jsonschema_description:"True when every required argument is present"`
	Missing []string `json:"missing,omitempty" jsonschema_description:"Names of missing required arguments"`
}

// TemplateInfo describes one intent.
type TemplateInfo struct {
	Name        string                     `json:"name"`
	Domain      string                     `json:"domain"`
	Description string                     `json:"description,omitempty"`
	Args        map[string]domain.Argument `json:"args,omitempty"`
}

// Engine defines the interface required by the MCP server to interact with Dialogic.
type Engine interface {
	Render(ctx context.Context, name string, env map[string]any, opts ...realizer.RenderOption) (*realizer.Result, error)
	RenderSession(ctx context.Context, sessionID, name string, env map[string]any) (*realizer.Result, error)
	Check(name string, env map[string]any) error
	Evaluate(expr string, env map[string]any) (any, error)
	Catalog() *domain.Catalog
}

// Server wraps the Dialogic Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("dialogic-mcp", dialogic.Version),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: render_template
	renderTool := mcp.NewTool("render_template",
		mcp.WithDescription("Realize a template into text. With session_id the render joins that conversation's history."),
		mcp.WithString("template", mcp.Required(), mcp.Description("Template (intent) name")),
		mcp.WithString("env", mcp.Description("JSON object with the template arguments (optional)")),
		mcp.WithString("session_id", mcp.Description("Conversation to render in (optional)")),
		mcp.WithOutputSchema[RenderResponse](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRender))

	// TOOL: validate_parameters
	validateTool := mcp.NewTool("validate_parameters",
		mcp.WithDescription("Check that an env carries every required argument of a template."),
		mcp.WithString("template", mcp.Required(), mcp.Description("Template (intent) name")),
		mcp.WithString("env", mcp.Description("JSON object with the template arguments (optional)")),
		mcp.WithOutputSchema[ValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: list_templates
	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the loaded intents with their arguments."),
	), s.handleList)

	// TOOL: evaluate_expression
	s.mcpServer.AddTool(mcp.NewTool("evaluate_expression",
		mcp.WithDescription("Evaluate a condition expression, e.g. \"$count > 1 && len($items) == 2\"."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Expression to evaluate")),
		mcp.WithString("env", mcp.Description("JSON object bound to $variables (optional)")),
	), s.handleEvaluate)
}

func decodeEnv(args map[string]any) (map[string]any, error) {
	raw, _ := args["env"].(string)
	if raw == "" {
		return nil, nil
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("env must be a JSON object: %w", err)
	}
	return runner.SanitizeEnv(env)
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RenderResponse, error) {
	name, _ := args["template"].(string)
	env, err := decodeEnv(args)
	if err != nil {
		s.logger.Warn("MCP Render: Input rejected", "template", name, "error", err)
		return RenderResponse{}, err
	}

	var res *realizer.Result
	if id, _ := args["session_id"].(string); id != "" {
		res, err = s.engine.RenderSession(ctx, id, name, env)
	} else {
		res, err = s.engine.Render(ctx, name, env)
	}
	if err != nil {
		s.logger.Error("MCP Render: failed", "template", name, "error", err)
		return RenderResponse{Response: err.Error(), Success: false}, nil
	}
	return RenderResponse{Response: res.Text, Success: true}, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidateResponse, error) {
	name, _ := args["template"].(string)
	env, err := decodeEnv(args)
	if err != nil {
		return ValidateResponse{}, err
	}

	err = s.engine.Check(name, env)
	var missing *realizer.MissingArgumentsError
	switch {
	case err == nil:
		return ValidateResponse{Valid: true}, nil
	case errors.As(err, &missing):
		return ValidateResponse{Valid: false, Missing: missing.Missing}, nil
	default:
		return ValidateResponse{}, err
	}
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.templates())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	expr, _ := args["expression"].(string)
	if expr == "" {
		return mcp.NewToolResultError("expression is required"), nil
	}
	env, err := decodeEnv(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	val, err := s.engine.Evaluate(expr, env)
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", kind, err)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprint(val)), nil
}

func (s *Server) templates() []TemplateInfo {
	c := s.engine.Catalog()
	out := make([]TemplateInfo, 0, len(c.Schema))
	for _, name := range c.Intents() {
		owner, _ := c.Owner(name)
		schema := c.Schema[name]
		out = append(out, TemplateInfo{
			Name:        name,
			Domain:      owner,
			Description: schema.Description,
			Args:        schema.Args,
		})
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CatalogURI, "Loaded Intents",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.templates())
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      CatalogURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
