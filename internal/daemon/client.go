package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

// RPCError is a JSON-RPC error returned by the daemon.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s failed: %s (code: %d)", e.Method, e.Message, e.Code)
}

// Client talks to the daemon. Each call uses its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForServer retries Ping with backoff until the daemon answers.
func (c *Client) WaitForServer(ctx context.Context) error {
	return amerrors.Retry(ctx, amerrors.DefaultRetryConfig(), func() error {
		return c.Ping(ctx)
	})
}

// Call sends one request and decodes the result into out, which may be nil.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := c.send(conn, method, params); err != nil {
		return err
	}
	resp, err := c.receive(bufio.NewReader(conn))
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.Call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("ping failed: no pong")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.Call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// InitialSearch replaces the daemon's index with one for userID. The
// bootstrap continues in the daemon after this returns.
func (c *Client) InitialSearch(ctx context.Context, p InitialSearchParams) error {
	return c.Call(ctx, MethodInitialSearch, p, nil)
}

// IndexBatch sends a JSON array of messages to the main index.
func (c *Client) IndexBatch(ctx context.Context, messages string) (IndexBatchResult, error) {
	var res IndexBatchResult
	err := c.Call(ctx, MethodIndexBatch, IndexBatchParams{Message: &messages}, &res)
	return res, err
}

// RealTimeIndex queues one message for real-time indexing.
func (c *Client) RealTimeIndex(ctx context.Context, message json.RawMessage) error {
	return c.Call(ctx, MethodRealTimeIndex, RealTimeIndexParams{Message: message}, nil)
}

// Search runs a prebuilt query.
func (c *Client) Search(ctx context.Context, p lifecycle.SearchPayload) (engine.SearchResult, error) {
	var res engine.SearchResult
	err := c.Call(ctx, MethodSearch, p, &res)
	return res, err
}

// LatestTimestamp returns the newest indexed timestamp.
func (c *Client) LatestTimestamp(ctx context.Context) (TimestampResult, error) {
	var res TimestampResult
	err := c.Call(ctx, MethodGetLatestTimestamp, nil, &res)
	return res, err
}

// EncryptIndex writes the encrypted archive.
func (c *Client) EncryptIndex(ctx context.Context, key string) error {
	return c.Call(ctx, MethodEncryptIndex, EncryptIndexParams{Key: key}, nil)
}

// DeleteRealTimeIndex clears the realtime index.
func (c *Client) DeleteRealTimeIndex(ctx context.Context) error {
	return c.Call(ctx, MethodDeleteRealTimeIndex, nil, nil)
}

// CheckDiskSpace reports whether minBytes are free next to the index.
func (c *Client) CheckDiskSpace(ctx context.Context, minBytes int64) (bool, error) {
	var ok bool
	err := c.Call(ctx, MethodCheckDiskSpace, CheckDiskSpaceParams{MinimumDiskSpace: minBytes}, &ok)
	return ok, err
}

// GetUserConfig returns userID's record, or nil for a new user.
func (c *Client) GetUserConfig(ctx context.Context, userID string) (*userconfig.UserConfig, error) {
	var cfg *userconfig.UserConfig
	err := c.Call(ctx, MethodGetSearchUserConfig, UserConfigParams{UserID: userID}, &cfg)
	return cfg, err
}

// UpdateUserConfig replaces userID's record.
func (c *Client) UpdateUserConfig(ctx context.Context, userID string, data *userconfig.UserConfig) (*userconfig.UserConfig, error) {
	var cfg *userconfig.UserConfig
	err := c.Call(ctx, MethodUpdateUserConfig, UpdateUserConfigParams{UserID: userID, UserData: data}, &cfg)
	return cfg, err
}

// ValidatorResponse returns the last validator diagnostic.
func (c *Client) ValidatorResponse(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.Call(ctx, MethodGetValidatorResponse, nil, &resp)
	return resp, err
}

// Subscribe keeps a connection open and calls fn for each readiness
// notification until ctx is done or the daemon goes away.
func (c *Client) Subscribe(ctx context.Context, fn func(ready bool)) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := c.send(conn, MethodSubscribe, nil); err != nil {
		return err
	}
	reader := bufio.NewReader(conn)
	resp, err := c.receive(reader)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Method: MethodSubscribe, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("failed to clear deadline: %w", err)
	}

	for {
		line, err := readLine(reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("subscription closed: %w", err)
		}
		var n struct {
			Method string `json:"method"`
			Data   bool   `json:"data"`
		}
		if err := json.Unmarshal(line, &n); err != nil {
			continue
		}
		if n.Method == MethodSetIsSwiftSearchInitialized {
			fn(n.Data)
		}
	}
}

// clientResponse keeps the result raw until the caller picks a type.
type clientResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// send encodes and writes a request to the connection.
func (c *Client) send(conn net.Conn, method string, params any) error {
	req := struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  any             `json:"params,omitempty"`
		ID      json.RawMessage `json:"id"`
	}{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// receive reads one response line.
func (c *Client) receive(r *bufio.Reader) (*clientResponse, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	var resp clientResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// nextID generates a unique numeric request ID.
func (c *Client) nextID() json.RawMessage {
	return json.RawMessage(strconv.FormatUint(c.requestID.Add(1), 10))
}
