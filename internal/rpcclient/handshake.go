package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/registry"
)

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolDescriptor is the raw tools/list entry shape returned by a child
// MCP server, ahead of schema conversion.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type listToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ResourceDescriptor is the raw resources/list entry shape.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type listResourcesResult struct {
	Resources []ResourceDescriptor `json:"resources"`
}

// PromptDescriptor is the raw prompts/list entry shape.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type listPromptsResult struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

const (
	listToolsAttempts = 3
	listToolsDelay    = 500 * time.Millisecond
)

// Initialize performs the MCP handshake: initialize, then the
// notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	}

	if _, err := c.Call(ctx, "initialize", params); err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrHandshakeFailed, err)
	}

	if err := c.Notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("%w: %v", gatewayerr.ErrHandshakeFailed, err)
	}
	return nil
}

// ListTools fetches the child's tool list, retrying a few times since a
// server may not have finished registering its tools immediately after
// the handshake completes.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var lastErr error
	for attempt := 0; attempt < listToolsAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(listToolsDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := c.Call(ctx, "tools/list", nil)
		if err != nil {
			lastErr = err
			continue
		}

		var result listToolsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			lastErr = fmt.Errorf("parse tools/list result: %w", err)
			continue
		}
		return result.Tools, nil
	}
	return nil, fmt.Errorf("%w: tools/list failed after %d attempts: %v", gatewayerr.ErrHandshakeFailed, listToolsAttempts, lastErr)
}

// ListResources fetches the child's resource list. A method-not-found
// error is treated as "no such capability" and returns an empty list
// rather than an error, matching spec.md section 6.
func (c *Client) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	raw, err := c.Call(ctx, "resources/list", nil)
	if err != nil {
		if isMethodNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var result listResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse resources/list result: %w", err)
	}
	return result.Resources, nil
}

// ListPrompts fetches the child's prompt list, with the same
// method-not-found-as-empty-list treatment as ListResources.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptDescriptor, error) {
	raw, err := c.Call(ctx, "prompts/list", nil)
	if err != nil {
		if isMethodNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var result listPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse prompts/list result: %w", err)
	}
	return result.Prompts, nil
}

func isMethodNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == registry.MethodNotFound
}

type callToolResult struct {
	Content json.RawMessage `json:"content"`
}

// CallTool invokes a single tool on the child server and returns its
// content blocks as-is, per spec.md section 4.5.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error) {
	params := map[string]any{
		"name":      name,
		"arguments": arguments,
	}
	raw, err := c.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	return result.Content, nil
}
