package toolsurface

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/gateway/internal/registry"
	"github.com/toolmesh/gateway/internal/toolschema"
)

func TestSurface_ListTools_PreservesRegistrationOrder(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)

	s.RegisterFixed(&toolschema.Descriptor{Name: "a"}, nil)
	s.RegisterFixed(&toolschema.Descriptor{Name: "b"}, nil)
	require.NoError(t, s.RegisterDynamic(&toolschema.Descriptor{Name: "c"}, nil))

	names := make([]string, 0)
	for _, d := range s.ListTools() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestSurface_RegisterDynamic_RejectsDuplicate(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	require.NoError(t, s.RegisterDynamic(&toolschema.Descriptor{Name: "x"}, nil))
	err := s.RegisterDynamic(&toolschema.Descriptor{Name: "x"}, nil)
	require.Error(t, err)
}

func TestSurface_UnregisterDynamic_RemovesFromOrder(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	require.NoError(t, s.RegisterDynamic(&toolschema.Descriptor{Name: "x"}, nil))
	require.NoError(t, s.UnregisterDynamic("x"))
	assert.Empty(t, s.ListTools())
}

func TestSurface_Serve_InitializeThenToolsList(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	s.RegisterFixed(&toolschema.Descriptor{Name: "ping", Description: "pings"}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]string{"pong": "true"}, nil
	})

	requests := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"ping","arguments":{}}}`,
	}, "\n") + "\n"

	err := s.Serve(context.Background(), strings.NewReader(requests))
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var responses []registry.JSONRPCResponse
	for scanner.Scan() {
		var r registry.JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		responses = append(responses, r)
	}
	require.Len(t, responses, 3)

	var toolsResult struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(responses[1].Result, &toolsResult))
	require.Len(t, toolsResult.Tools, 1)
	assert.Equal(t, "ping", toolsResult.Tools[0]["name"])

	var callResult map[string]string
	require.NoError(t, json.Unmarshal(responses[2].Result, &callResult))
	assert.Equal(t, "true", callResult["pong"])
}

func TestSurface_UnknownToolCall_ReturnsError(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)

	requests := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"missing","arguments":{}}}` + "\n"
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(requests)))

	var resp registry.JSONRPCResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, registry.MethodNotFound, resp.Error.Code)
}

func TestSurface_NotifyToolsChanged_RequiresInitializeFirst(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	s.NotifyToolsChanged()
	assert.Empty(t, out.Bytes())
}
