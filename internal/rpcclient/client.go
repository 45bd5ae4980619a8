// Package rpcclient implements a JSON-RPC 2.0 client over a child's
// stdin/stdout pipes, using newline-delimited JSON framing. Unlike the
// single-writer, single-pending-request design of the reference stdio
// worker, this client supports concurrent in-flight calls by
// correlating responses to requests through a pending-request map keyed
// on request id.
package rpcclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/logger"
	"github.com/toolmesh/gateway/internal/registry"
)

const (
	// defaultTimeout bounds any single request/response round trip.
	defaultTimeout = 60 * time.Second
	protocolVersion = "2024-11-05"
)

// Client is a bidirectional JSON-RPC client over a child process's
// stdio pipes.
type Client struct {
	stdin  io.Writer
	stdout io.Reader

	writeMu sync.Mutex // serializes writes to stdin

	nextID int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResult

	closeOnce sync.Once
	closed    chan struct{}
}

type rpcResult struct {
	result json.RawMessage
	err    *registry.JSONRPCError
}

// RPCError carries the peer's JSON-RPC error code alongside its
// message, so callers can distinguish e.g. method-not-found (a missing
// optional capability) from a genuine call failure.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// New creates a client over the given pipes. Call Start before issuing
// any calls.
func New(stdin io.Writer, stdout io.Reader) *Client {
	return &Client{
		stdin:   stdin,
		stdout:  stdout,
		pending: make(map[int64]chan rpcResult),
		closed:  make(chan struct{}),
	}
}

// Start launches the background reader goroutine that demultiplexes
// incoming responses to their waiting callers.
func (c *Client) Start() {
	go c.readLoop()
}

// Close implements C5's close() operation: it closes the child's stdin
// (signalling EOF to a well-behaved child) and closes the stdout pipe to
// cancel the reader goroutine, failing any still-pending calls. Safe to
// call more than once.
func (c *Client) Close() error {
	var firstErr error
	if closer, ok := c.stdin.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if closer, ok := c.stdout.(io.Closer); ok {
		if err := closer.Close(); firstErr == nil && err != nil {
			firstErr = err
		}
	}
	c.closeOnce.Do(func() { close(c.closed) })
	return firstErr
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg struct {
			ID     any                     `json:"id"`
			Method string                  `json:"method"`
			Result json.RawMessage         `json:"result"`
			Error  *registry.JSONRPCError  `json:"error"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		if msg.Method != "" {
			// Server-initiated notifications have no reply slot to
			// deliver to; the default sink is discard-but-log.
			logger.AddLog("INFO", fmt.Sprintf("discarding unsolicited notification %q from child", msg.Method))
			continue
		}

		id, ok := asInt64(msg.ID)
		if !ok {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- rpcResult{result: msg.Result, err: msg.Error}
		}
	}
	c.failAllPending(fmt.Errorf("%w: stdout closed", gatewayerr.ErrRPCConnectionClosed))
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan rpcResult)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: &registry.JSONRPCError{Code: registry.InternalError, Message: err.Error()}}
	}

	c.closeOnce.Do(func() { close(c.closed) })
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// Call sends a JSON-RPC request and waits for its response, bounded by
// ctx and a default 60 second timeout, whichever is shorter.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}

	req := registry.JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	ch := make(chan rpcResult, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeLine(req); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrRPCConnectionClosed, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", gatewayerr.ErrToolCallFailed, &RPCError{Code: res.err.Code, Message: res.err.Message})
		}
		return res.result, nil
	case <-timeoutCtx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: method %q", gatewayerr.ErrRPCTimeout, method)
	case <-c.closed:
		return nil, fmt.Errorf("%w: method %q", gatewayerr.ErrRPCConnectionClosed, method)
	}
}

// Notify sends a JSON-RPC notification with no id and does not wait for
// a response.
func (c *Client) Notify(method string, params any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}
	req := registry.JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: raw}
	return c.writeLine(req)
}

func (c *Client) writeLine(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = c.stdin.Write(data)
	return err
}
