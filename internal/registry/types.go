// Package registry implements the gateway's catalog entry store: the
// in-memory index of known MCP servers, their launch metadata, and the
// set of currently active mounts.
package registry

import "time"

// SourceType identifies which catalog feed an entry was discovered from.
type SourceType string

const (
	SourceDocker     SourceType = "docker"
	SourceMCPServers SourceType = "mcpservers"
	SourceMCPOfficial SourceType = "mcp_official"
	SourceAwesome    SourceType = "awesome"
	SourceCustom     SourceType = "custom"
)

// LaunchMethod identifies how a server is started once mounted.
type LaunchMethod string

const (
	LaunchContainer  LaunchMethod = "container"
	LaunchStdioProxy LaunchMethod = "stdio"
	LaunchRemoteHTTP LaunchMethod = "remote_http"
	LaunchUnknown    LaunchMethod = "unknown"
)

// ServerCommand describes how to launch a stdio-flavored server, either
// directly as a local process or wrapped inside a container image.
type ServerCommand struct {
	Command        string   `json:"command,omitempty"`
	Args           []string `json:"args,omitempty"`
	ContainerImage string   `json:"container_image,omitempty"`
}

// Entry is a single catalog record: one known MCP server.
type Entry struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Source         SourceType        `json:"source"`
	RepoURL        string            `json:"repo_url,omitempty"`
	ContainerImage string            `json:"container_image,omitempty"`
	Categories     []string          `json:"categories,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Official       bool              `json:"official"`
	Featured       bool              `json:"featured"`
	RequiresAPIKey bool              `json:"requires_api_key"`
	LaunchMethod   LaunchMethod      `json:"launch_method"`
	ServerCommand  ServerCommand     `json:"server_command"`
	LastRefreshed  time.Time         `json:"last_refreshed"`
	AddedAt        time.Time         `json:"added_at"`
	RawMetadata    map[string]any    `json:"raw_metadata,omitempty"`
}

// ActiveMount records a currently-mounted server: the catalog entry it
// was launched from, the supervised process/container handle, and the
// tool-name prefix its dynamic tools are registered under.
type ActiveMount struct {
	EntryID     string            `json:"entry_id"`
	Name        string            `json:"name"`
	Prefix      string            `json:"prefix"`
	ContainerID string            `json:"container_id,omitempty"`
	PID         int               `json:"pid,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	MountedAt   time.Time         `json:"mounted_at"`
	Tools       []string          `json:"tools,omitempty"`
	Resources   []string          `json:"resources,omitempty"`
	Prompts     []string          `json:"prompts,omitempty"`
}

// SourceRefreshStatus tracks the freshness and health of a single source's
// most recent refresh cycle.
type SourceRefreshStatus struct {
	SourceType       SourceType `json:"source_type"`
	LastRefresh      time.Time  `json:"last_refresh"`
	LastAttempt      time.Time  `json:"last_attempt"`
	EntryCount       int        `json:"entry_count"`
	Status           string     `json:"status"` // "ok", "refreshing", "error"
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// Status is the aggregate registry status surfaced by registry_status.
type Status struct {
	TotalEntries       int                             `json:"total_entries"`
	ActiveMounts       int                              `json:"active_mounts"`
	Sources            map[SourceType]SourceRefreshStatus `json:"sources"`
	LastRefreshAttempt time.Time                        `json:"last_refresh_attempt"`
	CacheDir           string                           `json:"cache_dir"`
	SourcesDir         string                           `json:"sources_dir"`
}

// SearchQuery is the input to the search index.
type SearchQuery struct {
	Query          string       `json:"query,omitempty"`
	Categories     []string     `json:"categories,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	Sources        []SourceType `json:"sources,omitempty"`
	OfficialOnly   bool         `json:"official_only,omitempty"`
	FeaturedOnly   bool         `json:"featured_only,omitempty"`
	RequiresAPIKey *bool        `json:"requires_api_key,omitempty"`
	Limit          int          `json:"limit,omitempty"`
}

// Normalize applies the query's defaults and bounds.
func (q *SearchQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}
