package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/reposcout/internal/async"
	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/search"
	"github.com/Aman-CERP/reposcout/internal/tools"
	"github.com/Aman-CERP/reposcout/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "reposcout"

// Server bridges MCP clients with the repository tools.
type Server struct {
	mcp    *mcp.Server
	tools  *tools.Service
	config *config.Config
	logger *slog.Logger

	// Background pre-warm progress (nil when not pre-warming)
	prewarm *async.Progress

	mu sync.RWMutex
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        tools.ToolListDirectory,
		Description: "List files and directories at a path in a GitLab repository. Read-only.",
	},
	{
		Name:        tools.ToolReadFile,
		Description: "Read the raw content of one file from a GitLab repository. Read-only.",
	},
	{
		Name:        tools.ToolListRepos,
		Description: "List every GitLab repository the configured token can see, served from a local cache when fresh.",
	},
	{
		Name:        tools.ToolGetRepoInfo,
		Description: "Get details for one GitLab repository: description, stars, forks, open issues, visibility and default branch.",
	},
	{
		Name:        tools.ToolSearchRepos,
		Description: "Find GitLab repositories by keywords. Ranks by name, description and path, then by cached documentation (README, AGENTS, CLAUDE, CHANGELOG) with matching snippets.",
	},
}

// NewServer creates a Server over svc.
func NewServer(svc *tools.Service, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("tool service is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tools:  svc,
		config: cfg,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStatsResource()
	return s, nil
}

// SetPrewarmProgress attaches background pre-warm progress to the stats
// resource.
func (s *Server) SetPrewarmProgress(p *async.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prewarm = p
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func (s *Server) describe(name string) string {
	for _, t := range toolInfos {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	addTool(s, tools.ToolListDirectory, s.listDirectory)
	addTool(s, tools.ToolReadFile, s.readFile)
	addTool(s, tools.ToolListRepos, s.listRepos)
	addTool(s, tools.ToolGetRepoInfo, s.getRepoInfo)
	addTool(s, tools.ToolSearchRepos, s.searchRepos)

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolInfos)))
}

// addTool registers fn under name. Results are returned as JSON text so
// success and failure shapes reach the client unchanged.
func addTool[In any](s *Server, name string, fn func(context.Context, In) any) {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: s.describe(name),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		out := s.invoke(ctx, name, func(ctx context.Context) any { return fn(ctx, in) })
		text, err := json.Marshal(out)
		if err != nil {
			return nil, nil, MapError(err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil, nil
	})
	s.logger.Debug("Registered tool", slog.String("name", name))
}

type outcome interface {
	Succeeded() bool
}

// invoke runs one tool call with request-scoped logging.
func (s *Server) invoke(ctx context.Context, name string, fn func(context.Context) any) any {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info(name+" started", slog.String("request_id", requestID))

	out := fn(ctx)

	success := true
	if o, ok := out.(outcome); ok {
		success = o.Succeeded()
	}
	s.logger.Info(name+" completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("success", success))
	return out
}

// CallTool invokes a tool by name with decoded JSON arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case tools.ToolListDirectory:
		return callWith(ctx, s, name, args, s.listDirectory)
	case tools.ToolReadFile:
		return callWith(ctx, s, name, args, s.readFile)
	case tools.ToolListRepos:
		return callWith(ctx, s, name, args, s.listRepos)
	case tools.ToolGetRepoInfo:
		return callWith(ctx, s, name, args, s.getRepoInfo)
	case tools.ToolSearchRepos:
		return callWith(ctx, s, name, args, s.searchRepos)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func callWith[In any](ctx context.Context, s *Server, name string, args map[string]any, fn func(context.Context, In) any) (any, error) {
	var in In
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}
	return s.invoke(ctx, name, func(ctx context.Context) any { return fn(ctx, in) }), nil
}

func (s *Server) listDirectory(ctx context.Context, in ListDirectoryInput) any {
	return s.tools.ListDirectory(ctx, in.ProjectPath, in.Path, in.Ref)
}

func (s *Server) readFile(ctx context.Context, in ReadFileInput) any {
	return s.tools.ReadFile(ctx, in.ProjectPath, in.FilePath, in.Ref)
}

func (s *Server) listRepos(ctx context.Context, in ListReposInput) any {
	return s.tools.ListRepos(ctx, boolOr(in.UseCache, true))
}

func (s *Server) getRepoInfo(ctx context.Context, in GetRepoInfoInput) any {
	return s.tools.GetRepoInfo(ctx, in.ProjectPath)
}

func (s *Server) searchRepos(ctx context.Context, in SearchReposInput) any {
	topK := s.config.Search.DefaultTopK
	if in.TopK != 0 {
		topK = search.ClampTopK(in.TopK, s.config.Search.MaxTopK)
	}
	return s.tools.SearchRepos(ctx, in.Query, topK, boolOr(in.WarmCache, s.config.Search.WarmCache))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP session ends with its context.
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
