package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/alertscope/internal/model"
)

const (
	defaultCallTimeout = 30 * time.Second
	reloadReplyMargin  = 500 * time.Millisecond
)

// Client implements model.SnapshotProvider over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	reader  *bufio.Reader
	partial []byte // bytes of a reply cut off by a read deadline
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	return &Client{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, scannerInitBufSize),
		encoder: json.NewEncoder(conn),
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
// The connection deadline follows ctx, or defaultCallTimeout when ctx has none.
func (c *Client) call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	var resp Response
	for {
		line, err := c.readLine()
		if err != nil {
			return err
		}

		resp = Response{}
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("socketrpc: unmarshal response: %w", err)
		}
		if resp.ID == id {
			break
		}
		if resp.ID > id {
			return fmt.Errorf("socketrpc: response id %d does not match request id %d", resp.ID, id)
		}
		// Late reply to an earlier call that timed out on our side.
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// readLine returns the next newline-terminated reply. A read that hits the
// deadline keeps what it got so the next call can finish the line.
func (c *Client) readLine() ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.partial = append(c.partial, line...)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("socketrpc: connection closed")
		}
		return nil, fmt.Errorf("socketrpc: read: %w", err)
	}
	if len(c.partial) > 0 {
		line = append(c.partial, line...)
		c.partial = nil
	}
	if len(line) > scannerMaxTokenSize {
		return nil, fmt.Errorf("socketrpc: reply exceeds %d bytes", scannerMaxTokenSize)
	}
	return line, nil
}

// Snapshot fetches the server's current snapshot.
func (c *Client) Snapshot() (*model.Snapshot, error) {
	var result model.Snapshot
	if err := c.call(context.Background(), "Snapshot", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reload asks the server to reload its source and returns the new snapshot.
func (c *Client) Reload(ctx context.Context) (*model.Snapshot, error) {
	params := map[string]interface{}{}
	if deadline, ok := ctx.Deadline(); ok {
		// Leave room for the reply so the server gives up before we do.
		budget := time.Until(deadline) - reloadReplyMargin
		params["TimeoutMs"] = max(budget.Milliseconds(), 1)
	}

	var result model.Snapshot
	if err := c.call(ctx, "Reload", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Query runs a read-only SQL query against the server's alerts table.
func (c *Client) Query(sql string) ([]map[string]interface{}, error) {
	var result []map[string]interface{}
	err := c.call(context.Background(), "Query", map[string]interface{}{"SQL": sql}, &result)
	return result, err
}

// Schema returns the server's table description and row counts.
func (c *Client) Schema() (SchemaInfo, error) {
	var result SchemaInfo
	err := c.call(context.Background(), "Schema", map[string]interface{}{}, &result)
	return result, err
}
