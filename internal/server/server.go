package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ironsheep/docscan-mcp/internal/raster"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
)

// Protocol constants.
const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "docscan-mcp"
)

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// maxRequestSize bounds one line of input.
const maxRequestSize = 4 * 1024 * 1024

// Version is reported in the initialize handshake. It is set by the main
// package from its build information.
var Version = "dev"

// Config holds the defaults applied to every tool call.
type Config struct {
	// Scan holds the pipeline defaults. Tool arguments override them per
	// call.
	Scan scanner.Options

	// JPEGQuality is used for JPEG output, both base64 and on disk.
	JPEGQuality int

	Logger zerolog.Logger
}

// Server handles MCP protocol communication
type Server struct {
	cache    *raster.Cache
	scanner  *scanner.Scanner
	sessions *scanner.Sessions
	defaults scanner.Options
	quality  int
	log      zerolog.Logger

	// out carries responses and notifications once Run has started.
	outMu sync.Mutex
	out   *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server that runs sc with the given defaults.
func New(sc *scanner.Scanner, cfg Config) *Server {
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = raster.DefaultJPEGQuality
	}
	return &Server{
		cache:    raster.NewCache(),
		scanner:  sc,
		sessions: scanner.NewSessions(),
		defaults: cfg.Scan,
		quality:  cfg.JPEGQuality,
		log:      cfg.Logger.With().Str("component", "server").Logger(),
	}
}

// Run reads line-delimited requests from in and writes responses to out
// until in is exhausted or ctx is done. Cancelling ctx also stops a batch
// that is in progress at its next image.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	lines.Buffer(make([]byte, 0, 64*1024), maxRequestSize)

	s.outMu.Lock()
	s.out = json.NewEncoder(out)
	s.outMu.Unlock()

	s.log.Info().Str("version", Version).Str("backend", s.scanner.Backend().Name).Msg("Server started")

	for lines.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := lines.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn().Err(err).Msg("Failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			s.send(resp)
		}
	}

	if err := lines.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	return nil
}

// send writes one message. Before Run it is a no-op.
func (s *Server) send(msg interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.out == nil {
		return
	}
	if err := s.out.Encode(msg); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode message")
	}
}

// notify sends a notification to the client.
func (s *Server) notify(method string, params interface{}) {
	s.send(&MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("Request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": Version,
			},
		},
	}
}

// errorResponse creates a JSON-RPC error response. An empty data is
// omitted.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}
