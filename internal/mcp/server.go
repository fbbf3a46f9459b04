package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/peoplelab/hr-kb/internal/service"
)

// Server implements the Model Context Protocol (MCP) server.
// It exposes the knowledge base search tools to external AI agents.
type Server struct {
	qnaService    *service.QnAService
	manualService *service.ManualService
	port          string
}

// NewServer creates a new MCP server.
func NewServer(qnaService *service.QnAService, manualService *service.ManualService, port string) *Server {
	return &Server{
		qnaService:    qnaService,
		manualService: manualService,
		port:          port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)

	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "hr-kb",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial endpoint message
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	w.(http.Flusher).Flush()

	// Keep connection alive
	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "search_qna",
			Description: "Search HR Q&A entries using hybrid semantic and keyword matching",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"limit": {"type": "integer", "description": "Max results, default 5"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "search_manuals",
			Description: "Search HR policy manuals using hybrid semantic and keyword matching",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"limit": {"type": "integer", "description": "Max results, default 5"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "get_manual",
			Description: "Fetch one manual with its full content and version history",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"manual_id": {"type": "string", "description": "Manual ID"}
				},
				"required": ["manual_id"]
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	switch req.Name {
	case "search_qna":
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		json.Unmarshal(req.Arguments, &args)
		if args.Limit <= 0 {
			args.Limit = 5
		}

		entries, _, err := s.qnaService.Search(ctx, service.QnASearchParams{
			Query: args.Query,
			Page:  1,
			Limit: args.Limit,
		})
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		for i, e := range entries {
			fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, e.QuestionTitle, e.Answer)
		}
		if b.Len() == 0 {
			b.WriteString("No matching Q&A entries found.")
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": b.String()},
			},
		}, nil

	case "search_manuals":
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		json.Unmarshal(req.Arguments, &args)
		if args.Limit <= 0 {
			args.Limit = 5
		}

		manuals, _, err := s.manualService.Search(ctx, service.ManualSearchParams{
			Query: args.Query,
			Page:  1,
			Limit: args.Limit,
		})
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		for i, m := range manuals {
			fmt.Fprintf(&b, "%d. %s (v%s, id %s)\n", i+1, m.Title, m.Version(), m.ID)
		}
		if b.Len() == 0 {
			b.WriteString("No matching manuals found.")
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": b.String()},
			},
		}, nil

	case "get_manual":
		var args struct {
			ManualID string `json:"manual_id"`
		}
		json.Unmarshal(req.Arguments, &args)

		manual, err := s.manualService.Get(ctx, args.ManualID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": fmt.Sprintf("%s (v%s)\n\n%s", manual.Title, manual.Version(), manual.Content)},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
