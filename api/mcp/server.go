// api/mcp/server.go
// Agent-facing tool surface. A single JSON-RPC 2.0 endpoint, authenticated
// by API key only, exposing exactly three tools: list, get and draft. Agents
// never write problems directly; every change goes through the draft
// workflow.
package mcp

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
)

var customLog = logger.NewLogger()

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// toolHandler runs one tool call for an authenticated principal. A returned
// error becomes a tool-level failure (isError), not a protocol error.
type toolHandler func(c *gin.Context, principal auth.Principal, arguments json.RawMessage) (any, error)

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	handler     toolHandler
}

// Server is the MCP endpoint. The tool registry is assembled exactly once,
// no matter how many first requests race.
type Server struct {
	DB *sql.DB

	initOnce sync.Once
	tools    []tool
	byName   map[string]tool
}

// NewServer creates the MCP server over the shared database pool.
func NewServer(db *sql.DB) *Server {
	return &Server{DB: db}
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		s.tools = []tool{
			s.listTool(),
			s.getTool(),
			s.draftTool(),
		}
		s.byName = make(map[string]tool, len(s.tools))
		for _, t := range s.tools {
			s.byName[t.Name] = t
		}
		customLog.Printf("MCP: Registered %d tools", len(s.tools))
	})
}

// Handle serves one JSON-RPC request. Runs behind APIKeyAuthMiddleware.
func (s *Server) Handle(c *gin.Context) {
	s.init()

	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "Invalid request"}})
		return
	}

	principal := middleware.Principal(c)

	switch req.Method {
	case "initialize":
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: gin.H{
			"protocolVersion": protocolVersion,
			"capabilities":    gin.H{"tools": gin.H{}},
			"serverInfo":      gin.H{"name": "solved-problems", "version": "1.0.0"},
		}})

	case "notifications/initialized":
		c.Status(http.StatusAccepted)

	case "tools/list":
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: gin.H{"tools": s.tools}})

	case "tools/call":
		s.handleToolCall(c, principal, req)

	default:
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "Method not found: " + req.Method}})
	}
}

func (s *Server) handleToolCall(c *gin.Context, principal auth.Principal, req rpcRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "Invalid params"}})
		return
	}

	t, ok := s.byName[params.Name]
	if !ok {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "Unknown tool: " + params.Name}})
		return
	}

	result, err := t.handler(c, principal, params.Arguments)
	if err != nil {
		// Tool failures ride inside the result so agents can read them.
		customLog.Printf("MCP: Tool %s failed: %v", params.Name, err)
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: gin.H{
			"content": []gin.H{{"type": "text", "text": err.Error()}},
			"isError": true,
		}})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "Failed to encode tool result"}})
		return
	}
	c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: gin.H{
		"content": []gin.H{{"type": "text", "text": string(payload)}},
	}})
}
