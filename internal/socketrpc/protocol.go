package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the published alert snapshot over a Unix
// domain socket, one request per line.
//
//   Method      Params                 Result
//   ────────    ───────────────────    ─────────────────────────────────────
//   Snapshot    (none)                 model.Snapshot
//   Reload      {TimeoutMs: int}       model.Snapshot
//   Query       {SQL: string}          []map[string]any (read-only SELECT/WITH)
//   Schema      (none)                 {Description, RowCounts}
//
// Snapshot and Schema accept empty or null params. Query and Schema are only
// served when the SQL store is enabled.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (load or query failure)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// SchemaInfo is the result of the Schema method.
type SchemaInfo struct {
	Description string           `json:"description"`
	RowCounts   map[string]int64 `json:"rowCounts"`
}

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/alertscope/alertscope.sock, falling back to
// ~/.local/state/alertscope/alertscope.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "alertscope", "alertscope.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/alertscope.sock"
	}
	return filepath.Join(home, ".local", "state", "alertscope", "alertscope.sock")
}
