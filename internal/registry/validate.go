package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/toolmesh/gateway/internal/gatewayerr"
)

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult aggregates validation errors and warnings for an entry.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []string
}

var (
	idPattern     = regexp.MustCompile(`^[a-z0-9\-_/]+$`)
	imagePattern  = regexp.MustCompile(`[/:]`)
	envKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// envAllowPrefixes mirrors the allowlist in spec.md section 6: only
// environment keys with one of these prefixes may be set via
// registry_config_set.
var envAllowPrefixes = []string{
	"API_KEY", "API_TOKEN", "AUTH_", "DATABASE_", "DB_",
	"GITHUB_", "OPENAI_", "ANTHROPIC_", "AWS_", "AZURE_",
	"GCP_", "SLACK_", "DISCORD_", "NOTION_", "MCP_",
}

var validSources = map[SourceType]bool{
	SourceDocker:      true,
	SourceMCPServers:  true,
	SourceMCPOfficial: true,
	SourceAwesome:     true,
	SourceCustom:      true,
}

// ValidateEntry checks an entry for structural correctness before it is
// admitted into the store.
func ValidateEntry(e Entry) ValidationResult {
	result := ValidationResult{Valid: true}

	if e.ID == "" {
		result.Errors = append(result.Errors, ValidationError{"id", "must not be empty"})
	} else if !idPattern.MatchString(e.ID) {
		result.Errors = append(result.Errors, ValidationError{"id", "must contain only lowercase letters, digits, '-', '_', '/'"})
	}

	if e.Name == "" {
		result.Errors = append(result.Errors, ValidationError{"name", "must not be empty"})
	}

	if !validSources[e.Source] {
		result.Errors = append(result.Errors, ValidationError{"source", fmt.Sprintf("unknown source %q", e.Source)})
	}

	if e.ContainerImage != "" && !imagePattern.MatchString(e.ContainerImage) {
		result.Errors = append(result.Errors, ValidationError{"container_image", "must contain a registry path separator or a tag"})
	}

	if e.LaunchMethod == LaunchContainer && e.ServerCommand.ContainerImage == "" {
		result.Errors = append(result.Errors, ValidationError{"server_command.container_image", "required for container launch method"})
	}
	if e.LaunchMethod == LaunchStdioProxy && e.ServerCommand.Command == "" {
		result.Errors = append(result.Errors, ValidationError{"server_command.command", "required for stdio launch method"})
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateEnvKey reports whether key may be set through registry_config_set,
// per the allowlist in spec.md section 6.
func ValidateEnvKey(key string) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q is not a valid environment variable name", gatewayerr.ErrValidation, key)
	}
	for _, prefix := range envAllowPrefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q does not match any allowed environment variable prefix", gatewayerr.ErrValidation, key)
}
