// Package mount implements the mount engine: activating a catalog entry
// by spawning its child, completing the MCP handshake, converting its
// tools, and registering them on the upstream tool surface; and
// deactivating it again in the reverse, fixed teardown order.
package mount

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/logger"
	"github.com/toolmesh/gateway/internal/registry"
	"github.com/toolmesh/gateway/internal/rpcclient"
	"github.com/toolmesh/gateway/internal/supervisor"
	"github.com/toolmesh/gateway/internal/toolschema"
)

// activateTimeout bounds the whole activation sequence: spawn,
// handshake, tool discovery.
const activateTimeout = 30 * time.Second

// Executor is the function a registered dynamic tool ultimately calls.
type Executor func(ctx context.Context, arguments map[string]any) (json.RawMessage, error)

// ToolRegistry is the subset of the upstream tool surface the mount
// engine mutates. Defined here, on the consumer side, so toolsurface can
// depend on mount's types without an import cycle.
type ToolRegistry interface {
	RegisterDynamic(descriptor *toolschema.Descriptor, exec Executor) error
	UnregisterDynamic(name string) error
	NotifyToolsChanged()
}

// Store is the subset of registry.Store the mount engine needs.
type Store interface {
	GetEntry(id string) (registry.Entry, error)
	GetActiveMount(entryID string) (registry.ActiveMount, bool)
	AddActiveMount(m registry.ActiveMount) error
	RemoveActiveMount(entryID string) error
	ListActiveMounts() []registry.ActiveMount
}

// Engine activates and deactivates catalog entries.
type Engine struct {
	store      Store
	supervisor *supervisor.Supervisor
	surface    ToolRegistry

	mu      sync.Mutex
	clients map[string]*rpcclient.Client // keyed by entry id
}

// New creates a mount engine.
func New(store Store, sup *supervisor.Supervisor, surface ToolRegistry) *Engine {
	return &Engine{
		store:      store,
		supervisor: sup,
		surface:    surface,
		clients:    make(map[string]*rpcclient.Client),
	}
}

// Activate mounts the catalog entry identified by entryID: it spawns the
// child, performs the MCP handshake, discovers and converts its tools,
// registers them on the upstream tool surface, and records the mount.
// Activating an already-active entry is idempotent and returns its
// existing mount.
func (e *Engine) Activate(ctx context.Context, entryID string, prefix string, env map[string]string) (registry.ActiveMount, error) {
	if existing, ok := e.store.GetActiveMount(entryID); ok {
		return existing, nil
	}

	entry, err := e.store.GetEntry(entryID)
	if err != nil {
		return registry.ActiveMount{}, err
	}

	if prefix == "" {
		prefix = derivePrefix(entryID)
	}

	spec := supervisor.LaunchSpec{
		Name:    prefix,
		Method:  entry.LaunchMethod,
		Command: entry.ServerCommand.Command,
		Args:    entry.ServerCommand.Args,
		Image:   entry.ServerCommand.ContainerImage,
		Env:     env,
	}

	return e.activateSpec(ctx, entryID, prefix, spec, env)
}

// ActivateAdHoc launches a stdio MCP server directly from a command and
// arguments, with no catalog entry backing it. registry_launch_stdio uses
// this to mount a server the caller knows about but hasn't (or doesn't
// want to) add to the catalog first. The mount is recorded under a
// synthetic entry id scoped to the prefix so it still participates in
// registry_active, registry_config_set, and registry_remove like any
// other active mount.
func (e *Engine) ActivateAdHoc(ctx context.Context, prefix, command string, args []string, env map[string]string) (registry.ActiveMount, error) {
	if prefix == "" {
		return registry.ActiveMount{}, fmt.Errorf("%w: prefix is required for an ad-hoc launch", gatewayerr.ErrValidation)
	}

	entryID := "adhoc/" + prefix
	if existing, ok := e.store.GetActiveMount(entryID); ok {
		return existing, nil
	}

	spec := supervisor.LaunchSpec{
		Name:    prefix,
		Method:  registry.LaunchStdioProxy,
		Command: command,
		Args:    args,
		Env:     env,
	}

	return e.activateSpec(ctx, entryID, prefix, spec, env)
}

// activateSpec runs the sequence shared by Activate and ActivateAdHoc:
// spawn, handshake, tool discovery and conversion, registration on the
// upstream tool surface, and recording the mount.
func (e *Engine) activateSpec(ctx context.Context, entryID, prefix string, spec supervisor.LaunchSpec, env map[string]string) (registry.ActiveMount, error) {
	ctx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()

	handle, err := e.supervisor.Start(ctx, spec)
	if err != nil {
		return registry.ActiveMount{}, err
	}

	client := rpcclient.New(handle.Stdin(), handle.Stdout())
	client.Start()

	if err := client.Initialize(ctx, "toolmesh-gateway", "0.1.0"); err != nil {
		e.supervisor.Stop(context.Background(), prefix)
		return registry.ActiveMount{}, err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		e.supervisor.Stop(context.Background(), prefix)
		return registry.ActiveMount{}, err
	}

	resources, err := client.ListResources(ctx)
	if err != nil {
		e.supervisor.Stop(context.Background(), prefix)
		return registry.ActiveMount{}, err
	}
	resourceURIs := make([]string, 0, len(resources))
	for _, r := range resources {
		resourceURIs = append(resourceURIs, r.URI)
	}

	prompts, err := client.ListPrompts(ctx)
	if err != nil {
		e.supervisor.Stop(context.Background(), prefix)
		return registry.ActiveMount{}, err
	}
	promptNames := make([]string, 0, len(prompts))
	for _, p := range prompts {
		promptNames = append(promptNames, p.Name)
	}

	registered := make([]string, 0, len(tools))
	for _, tool := range tools {
		descriptor, err := toolschema.Convert(tool.Name, tool.Title, tool.Description, tool.InputSchema)
		if err != nil {
			logger.AddLog("WARN", fmt.Sprintf("skipping tool %q from %q: %v", tool.Name, entryID, err))
			continue
		}

		qualified := toolschema.QualifiedName(prefix, tool.Name)
		descriptor.Name = qualified

		originalName := tool.Name
		toolDescriptor := descriptor
		exec := func(ctx context.Context, arguments map[string]any) (json.RawMessage, error) {
			return client.CallTool(ctx, originalName, toolDescriptor.ApplyDefaults(arguments))
		}

		if err := e.surface.RegisterDynamic(descriptor, exec); err != nil {
			logger.AddLog("WARN", fmt.Sprintf("failed to register tool %q from %q: %v", qualified, entryID, err))
			continue
		}
		registered = append(registered, qualified)
	}

	mount := registry.ActiveMount{
		EntryID:     entryID,
		Name:        prefix,
		Prefix:      prefix,
		ContainerID: handle.ContainerID(),
		PID:         handle.PID(),
		Environment: env,
		Tools:       registered,
		Resources:   resourceURIs,
		Prompts:     promptNames,
	}

	if err := e.store.AddActiveMount(mount); err != nil {
		for _, name := range registered {
			e.surface.UnregisterDynamic(name)
		}
		e.supervisor.Stop(context.Background(), prefix)
		return registry.ActiveMount{}, err
	}

	e.mu.Lock()
	e.clients[entryID] = client
	e.mu.Unlock()

	e.surface.NotifyToolsChanged()
	logger.AddLog("INFO", fmt.Sprintf("activated %q with %d tools under prefix %q", entryID, len(registered), prefix))

	return mount, nil
}

// Deactivate tears down an active mount in the fixed order: unregister
// tools, then close the RPC client, then stop the child, then remove the
// mount record. Each step is attempted even if an earlier one fails, so
// a partial teardown never leaves an unreachable mount record behind.
func (e *Engine) Deactivate(ctx context.Context, entryID string) error {
	mount, ok := e.store.GetActiveMount(entryID)
	if !ok {
		return fmt.Errorf("%w: no active mount for %q", gatewayerr.ErrEntryNotFound, entryID)
	}

	for _, name := range mount.Tools {
		if err := e.surface.UnregisterDynamic(name); err != nil {
			logger.AddLog("WARN", fmt.Sprintf("failed to unregister tool %q: %v", name, err))
		}
	}

	e.mu.Lock()
	client := e.clients[entryID]
	delete(e.clients, entryID)
	e.mu.Unlock()
	if client != nil {
		if err := client.Close(); err != nil {
			logger.AddLog("WARN", fmt.Sprintf("failed to close rpc client for %q: %v", entryID, err))
		}
	}

	if err := e.supervisor.Stop(ctx, mount.Prefix); err != nil {
		logger.AddLog("WARN", fmt.Sprintf("failed to stop child for %q: %v", entryID, err))
	}

	if err := e.store.RemoveActiveMount(entryID); err != nil {
		return err
	}

	e.surface.NotifyToolsChanged()
	logger.AddLog("INFO", fmt.Sprintf("deactivated %q", entryID))
	return nil
}

// Dispatch resolves a fully-qualified tool name (e.g.
// "mcp_github_search_issues") to its owning mount by matching the
// longest registered prefix, then forwards the call to that mount's RPC
// client under the tool's original, unqualified name. This is the
// fallback path for callers that address a tool directly by name
// instead of enumerating tools/list first.
func (e *Engine) Dispatch(ctx context.Context, qualifiedName string, arguments map[string]any) (json.RawMessage, error) {
	mounts := e.store.ListActiveMounts()

	var best registry.ActiveMount
	bestLen := -1
	for _, m := range mounts {
		candidate := "mcp_" + m.Prefix + "_"
		if strings.HasPrefix(qualifiedName, candidate) && len(candidate) > bestLen {
			best = m
			bestLen = len(candidate)
		}
	}
	if bestLen < 0 {
		return nil, fmt.Errorf("%w: no active mount owns tool %q", gatewayerr.ErrEntryNotFound, qualifiedName)
	}

	originalName := strings.TrimPrefix(qualifiedName, "mcp_"+best.Prefix+"_")

	e.mu.Lock()
	client, ok := e.clients[best.EntryID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no rpc client for mount %q", gatewayerr.ErrRPCConnectionClosed, best.EntryID)
	}

	return client.CallTool(ctx, originalName, arguments)
}

func derivePrefix(entryID string) string {
	parts := strings.Split(entryID, "/")
	last := parts[len(parts)-1]
	return strings.ReplaceAll(last, "-", "_")
}
