// Package toolsurface implements the upstream MCP tool surface: the
// fixed registry_* tools plus whatever dynamic tools the mount engine
// has registered, dispatched over a minimal stdio JSON-RPC loop.
package toolsurface

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/logger"
	"github.com/toolmesh/gateway/internal/mount"
	"github.com/toolmesh/gateway/internal/registry"
	"github.com/toolmesh/gateway/internal/toolschema"
)

// FixedHandler implements one of the gateway's own built-in tools.
type FixedHandler func(ctx context.Context, arguments map[string]any) (any, error)

type toolEntry struct {
	descriptor *toolschema.Descriptor
	fixed      FixedHandler
	dynamic    mount.Executor
}

// Surface holds the dispatch table of every tool the gateway currently
// exposes upstream, and runs the stdio JSON-RPC loop that serves
// initialize/tools-list/tools-call requests.
type Surface struct {
	mu    sync.RWMutex
	tools map[string]toolEntry
	order []string

	stdout      io.Writer
	writeMu     sync.Mutex
	initialized bool
}

// New creates an empty tool surface writing responses to stdout.
func New(stdout io.Writer) *Surface {
	return &Surface{
		tools:  make(map[string]toolEntry),
		stdout: stdout,
	}
}

// RegisterFixed adds one of the gateway's own built-in tools. Call this
// during startup, before Serve runs.
func (s *Surface) RegisterFixed(descriptor *toolschema.Descriptor, handler FixedHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[descriptor.Name]; !exists {
		s.order = append(s.order, descriptor.Name)
	}
	s.tools[descriptor.Name] = toolEntry{descriptor: descriptor, fixed: handler}
}

// RegisterDynamic implements mount.ToolRegistry: adds a tool sourced
// from a mounted child server.
func (s *Surface) RegisterDynamic(descriptor *toolschema.Descriptor, exec mount.Executor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[descriptor.Name]; exists {
		return fmt.Errorf("%w: tool %q already registered", gatewayerr.ErrAlreadyActive, descriptor.Name)
	}
	s.tools[descriptor.Name] = toolEntry{descriptor: descriptor, dynamic: exec}
	s.order = append(s.order, descriptor.Name)
	return nil
}

// UnregisterDynamic implements mount.ToolRegistry.
func (s *Surface) UnregisterDynamic(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[name]; !ok {
		return fmt.Errorf("%w: tool %q not registered", gatewayerr.ErrEntryNotFound, name)
	}
	delete(s.tools, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListTools returns every currently registered tool descriptor, in
// registration order.
func (s *Surface) ListTools() []*toolschema.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*toolschema.Descriptor, 0, len(s.order))
	for _, name := range s.order {
		list = append(list, s.tools[name].descriptor)
	}
	return list
}

// NotifyToolsChanged sends the notifications/tools/list_changed message
// to the upstream client, matching the reference control server's
// SSE notification shape.
func (s *Surface) NotifyToolsChanged() {
	if !s.initialized {
		return
	}
	notification := registry.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "notifications/tools/list_changed",
	}
	if err := s.writeMessage(notification); err != nil {
		logger.AddLog("WARN", fmt.Sprintf("failed to send tools/list_changed: %v", err))
	}
}

func (s *Surface) writeMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.stdout.Write(data)
	return err
}

// Serve runs the upstream JSON-RPC stdio loop, reading requests from r
// until ctx is done or r is exhausted.
func (s *Surface) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req registry.JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeMessage(registry.NewErrorResponse(nil, registry.ParseError, "invalid JSON", nil))
			continue
		}

		s.handleRequest(ctx, req)
	}
	return scanner.Err()
}

func (s *Surface) handleRequest(ctx context.Context, req registry.JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		s.initialized = true
		result := map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": true}},
			"serverInfo":      map[string]any{"name": "toolmesh-gateway", "version": "0.1.0"},
		}
		resp, _ := registry.NewResponse(req.ID, result)
		s.writeMessage(resp)
	case "notifications/initialized":
		// No response required for a notification.
	case "tools/list":
		tools := s.ListTools()
		payload := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			payload = append(payload, map[string]any{
				"name":        t.Name,
				"title":       t.Title,
				"description": t.Description,
				"inputSchema": t.InputSchema(),
			})
		}
		resp, _ := registry.NewResponse(req.ID, map[string]any{"tools": payload})
		s.writeMessage(resp)
	case "tools/call":
		s.handleToolCall(ctx, req)
	default:
		s.writeMessage(registry.NewErrorResponse(req.ID, registry.MethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil))
	}
}

func (s *Surface) handleToolCall(ctx context.Context, req registry.JSONRPCRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeMessage(registry.NewErrorResponse(req.ID, registry.InvalidParams, "invalid tools/call params", nil))
		return
	}

	s.mu.RLock()
	entry, ok := s.tools[params.Name]
	s.mu.RUnlock()
	if !ok {
		s.writeMessage(registry.NewErrorResponse(req.ID, registry.MethodNotFound, fmt.Sprintf("unknown tool %q", params.Name), nil))
		return
	}

	var (
		result any
		err    error
	)
	arguments := params.Arguments
	if entry.descriptor != nil {
		arguments = entry.descriptor.ApplyDefaults(arguments)
	}
	if entry.fixed != nil {
		result, err = entry.fixed(ctx, arguments)
	} else if entry.dynamic != nil {
		result, err = entry.dynamic(ctx, arguments)
	} else {
		err = fmt.Errorf("%w: tool %q has no handler", gatewayerr.ErrToolCallFailed, params.Name)
	}

	if err != nil {
		s.writeMessage(registry.NewErrorResponse(req.ID, registry.InternalError, err.Error(), nil))
		return
	}

	resp, marshalErr := registry.NewResponse(req.ID, result)
	if marshalErr != nil {
		s.writeMessage(registry.NewErrorResponse(req.ID, registry.InternalError, marshalErr.Error(), nil))
		return
	}
	s.writeMessage(resp)
}
