package toolsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/toolmesh/gateway/internal/registry"
	"github.com/toolmesh/gateway/internal/toolschema"
)

// SearchIndex is the subset of the search index the fixed tools need.
type SearchIndex interface {
	Search(q registry.SearchQuery) []registry.Entry
}

// Store is the subset of the registry store the fixed tools need.
type Store interface {
	ListAll() []registry.Entry
	GetEntry(id string) (registry.Entry, error)
	ListActiveMounts() []registry.ActiveMount
	UpdateMountEnvironment(entryID string, env map[string]string) error
	Status() registry.Status
}

// Mounter is the subset of the mount engine the fixed tools need.
type Mounter interface {
	Activate(ctx context.Context, entryID, prefix string, env map[string]string) (registry.ActiveMount, error)
	ActivateAdHoc(ctx context.Context, prefix, command string, args []string, env map[string]string) (registry.ActiveMount, error)
	Deactivate(ctx context.Context, entryID string) error
	Dispatch(ctx context.Context, qualifiedName string, arguments map[string]any) (json.RawMessage, error)
}

// Refresher is the subset of the scheduler needed by registry_refresh.
type Refresher interface {
	ForceRefresh(ctx context.Context, src registry.SourceType) error
	ForceRefreshAll(ctx context.Context) error
}

// RegisterFixedTools wires the gateway's own ten fixed tools onto the
// surface: registry_find, registry_list, registry_add, registry_remove,
// registry_active, registry_config_set, registry_exec, registry_refresh,
// registry_status, and registry_launch_stdio.
func RegisterFixedTools(s *Surface, store Store, index SearchIndex, mounter Mounter, refresher Refresher) {
	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_find", Description: "Search the catalog of known MCP servers"}, func(ctx context.Context, args map[string]any) (any, error) {
		var q registry.SearchQuery
		if err := remarshal(args, &q); err != nil {
			return nil, err
		}
		return index.Search(q), nil
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_list", Description: "List every known catalog entry"}, func(ctx context.Context, args map[string]any) (any, error) {
		return store.ListAll(), nil
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_add", Description: "Activate a catalog entry, mounting its tools"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			EntryID string            `json:"entry_id"`
			Prefix  string            `json:"prefix"`
			Env     map[string]string `json:"environment"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		return mounter.Activate(ctx, req.EntryID, req.Prefix, req.Env)
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_remove", Description: "Deactivate an active mount"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			EntryID string `json:"entry_id"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		return nil, mounter.Deactivate(ctx, req.EntryID)
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_active", Description: "List currently active mounts"}, func(ctx context.Context, args map[string]any) (any, error) {
		return store.ListActiveMounts(), nil
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_config_set", Description: "Set allowlisted environment variables on an active mount"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			EntryID     string            `json:"entry_id"`
			Environment map[string]string `json:"environment"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		for key := range req.Environment {
			if err := registry.ValidateEnvKey(key); err != nil {
				return nil, err
			}
		}
		return nil, store.UpdateMountEnvironment(req.EntryID, req.Environment)
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_exec", Description: "Call a mounted tool directly by its fully-qualified name"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			ToolName  string         `json:"tool_name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		return mounter.Dispatch(ctx, req.ToolName, req.Arguments)
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_refresh", Description: "Force an immediate refresh of a catalog source, or \"all\" sources"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			Source string `json:"source"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		if req.Source == "all" {
			return nil, refresher.ForceRefreshAll(ctx)
		}
		return nil, refresher.ForceRefresh(ctx, registry.SourceType(req.Source))
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_status", Description: "Report aggregate registry status"}, func(ctx context.Context, args map[string]any) (any, error) {
		return store.Status(), nil
	})

	s.RegisterFixed(&toolschema.Descriptor{Name: "registry_launch_stdio", Description: "Launch an ad-hoc stdio MCP server without a catalog entry"}, func(ctx context.Context, args map[string]any) (any, error) {
		var req struct {
			Command string            `json:"command"`
			Args    []string          `json:"args"`
			Prefix  string            `json:"prefix"`
			Env     map[string]string `json:"environment"`
		}
		if err := remarshal(args, &req); err != nil {
			return nil, err
		}
		return mounter.ActivateAdHoc(ctx, req.Prefix, req.Command, req.Args, req.Env)
	})
}

func remarshal(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return nil
}
