// Command fakemcpserver is a minimal stdio MCP server used as a test
// fixture: it implements just enough of the protocol (initialize,
// tools/list, tools/call) to exercise the rpc client and mount engine
// without spawning a real downstream server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func respond(id json.RawMessage, result any) {
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	data, _ := json.Marshal(resp)
	fmt.Println(string(data))
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			respond(req.ID, map[string]any{
				"protocolVersion": "2024-11-05",
				"capabilities":    map[string]any{},
				"serverInfo":      map[string]any{"name": "fakemcpserver", "version": "0.0.1"},
			})
		case "notifications/initialized":
			// No response for a notification.
		case "tools/list":
			respond(req.ID, map[string]any{
				"tools": []map[string]any{
					{
						"name":        "ping",
						"description": "replies with pong",
						"inputSchema": map[string]any{"type": "object", "properties": map[string]any{}},
					},
				},
			})
		case "tools/call":
			respond(req.ID, map[string]any{"content": []map[string]any{{"type": "text", "text": "pong"}}})
		default:
			respond(req.ID, map[string]any{"error": "unknown method"})
		}
	}
}
