package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
	"github.com/Aman-CERP/swiftsearch/internal/query"
	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
	"github.com/Aman-CERP/swiftsearch/pkg/version"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Index is the part of the live index the tools read. Both
// *lifecycle.Manager and the daemon's current index satisfy it.
type Index interface {
	UserID() string
	State() lifecycle.State
	IsLibInit() bool
	IsRealTimeIndexing() bool
	SearchQueryV2(ctx context.Context, p lifecycle.SearchPayload) (engine.SearchResult, error)
	GetLatestMessageTimestamp(ctx context.Context) (string, error)
	ValidatorResponse() map[string]any
}

// Source returns the live index, or nil when none is open.
type Source func() Index

// Server is the MCP server for swiftsearch. It answers tool calls against
// whatever index the source returns at call time.
type Server struct {
	mcp     *mcp.Server
	source  Source
	queries *query.Builder
	logger  *slog.Logger

	mu         sync.RWMutex
	stats      *telemetry.SearchStats
	statsAdded bool
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_messages",
		Description: "Search the user's message history. Matches words and prefixes in message text, #tags, attachment names and types, optionally narrowed by sender, thread and ingestion date.",
	},
	{
		Name:        "index_status",
		Description: "Report whether the message index is loaded and searchable, the newest indexed timestamp and the last corruption check. Call before searching if results look empty.",
	},
}

// NewServer creates a new MCP server. queries may be nil; a small private
// builder is used then.
func NewServer(source Source, queries *query.Builder, logger *slog.Logger) (*Server, error) {
	if source == nil {
		return nil, errors.New("index source is required")
	}
	if queries == nil {
		queries = query.NewBuilder(64)
	}
	s := &Server{
		source:  source,
		queries: queries,
		logger:  logging.OrDefault(logger),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Program,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Program, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-shaped arguments. search_messages
// returns markdown, index_status returns *IndexStatusOutput.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_messages":
		var input SearchMessagesInput
		if err := decodeArgs(args, &input); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
		out, err := s.searchMessages(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatMessages(input.Query, out), nil
	case "index_status":
		return s.indexStatus(ctx), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (s *Server) current() Index {
	return s.source()
}

func (s *Server) searchMessages(ctx context.Context, input SearchMessagesInput) (SearchMessagesOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	text := strings.TrimSpace(input.Query)
	if text == "" {
		return SearchMessagesOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	idx := s.current()
	if idx == nil || !idx.IsLibInit() {
		s.logger.Info("mcp_search_not_ready", slog.String("request_id", requestID))
		return SearchMessagesOutput{}, notReadyError()
	}

	q := s.queries.Construct(text, input.SenderIDs, input.ThreadIDs, input.FileType, input.SortByDate)
	if q == "" {
		return SearchMessagesOutput{}, NewInvalidParamsError("query has no searchable terms")
	}
	payload := lifecycle.SearchPayload{Q: q}
	limit := float64(clampLimit(input.Limit, defaultLimit, 1, maxLimit))
	payload.Limit = &limit
	if input.Offset > 0 {
		offset := float64(input.Offset)
		payload.Offset = &offset
	}
	if input.StartDate > 0 {
		payload.StartDate = lifecycle.DateParam(strconv.FormatInt(input.StartDate, 10))
	}
	if input.EndDate > 0 {
		payload.EndDate = lifecycle.DateParam(strconv.FormatInt(input.EndDate, 10))
	}
	if input.SortByDate {
		order := float64(config.SortByDate)
		payload.SortOrder = &order
	}

	// Query text is user content and stays out of the logs.
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.Int("query_length", len(text)),
		slog.Int("limit", int(limit)))

	res, err := idx.SearchQueryV2(ctx, payload)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchMessagesOutput{}, MapError(err)
	}

	out := ToSearchOutput(res)
	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("returned", out.Returned),
		slog.Int("total", out.Total))
	return out, nil
}

func (s *Server) indexStatus(ctx context.Context) *IndexStatusOutput {
	out := &IndexStatusOutput{
		State:   lifecycle.StateUninitialized.String(),
		Version: version.Short(),
	}
	idx := s.current()
	if idx == nil {
		return out
	}
	out.UserID = idx.UserID()
	out.State = idx.State().String()
	out.Initialized = idx.IsLibInit()
	out.RealTimeIndexing = idx.IsRealTimeIndexing()
	out.Validator = idx.ValidatorResponse()
	if out.Initialized {
		if ts, err := idx.GetLatestMessageTimestamp(ctx); err == nil {
			out.LatestTimestamp = ts
		} else {
			s.logger.Debug("mcp_timestamp_failed", slog.String("error", err.Error()))
		}
	}
	return out
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpSearchMessagesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchMessagesHandler is the MCP SDK handler for search_messages.
func (s *Server) mcpSearchMessagesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchMessagesInput) (
	*mcp.CallToolResult,
	SearchMessagesOutput,
	error,
) {
	out, err := s.searchMessages(ctx, input)
	if err != nil {
		return nil, SearchMessagesOutput{}, err
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for index_status.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	return nil, s.indexStatus(ctx), nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
