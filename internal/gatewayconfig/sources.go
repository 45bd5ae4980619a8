package gatewayconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/toolmesh/gateway/internal/registry"
)

// SourcesManifest lists catalog sources, each pointing at a directory of
// pre-fetched entry JSON files for a StaticProducer. Real scraper sources
// are out of scope. cmd/gateway does not read this manifest: serve
// registers a StaticProducer for every source type under
// SourcesDir/<source type>.
type SourcesManifest struct {
	Sources []ManifestSource `toml:"sources"`
}

// ManifestSource is one configured source.
type ManifestSource struct {
	Type string `toml:"type"`
	Dir  string `toml:"dir"`
}

// LoadSourcesManifest reads a sources.toml file describing which
// directories back which source types.
func LoadSourcesManifest(path string) (SourcesManifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return SourcesManifest{}, nil
	}
	if err != nil {
		return SourcesManifest{}, fmt.Errorf("read sources manifest: %w", err)
	}

	var manifest SourcesManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return SourcesManifest{}, fmt.Errorf("parse sources manifest: %w", err)
	}
	return manifest, nil
}

// SourceType resolves the manifest's string source type to the
// registry's SourceType enum.
func (m ManifestSource) SourceType() registry.SourceType {
	switch m.Type {
	case "docker":
		return registry.SourceDocker
	case "mcpservers":
		return registry.SourceMCPServers
	case "mcp_official":
		return registry.SourceMCPOfficial
	case "awesome":
		return registry.SourceAwesome
	default:
		return registry.SourceCustom
	}
}
