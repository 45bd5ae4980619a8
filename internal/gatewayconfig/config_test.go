package gatewayconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/gateway/internal/registry"
)

func TestStore_Load_DefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "settings.yaml"))

	settings, err := s.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "docker", settings.ContainerBinary)
	assert.Equal(t, 24*time.Hour, settings.RefreshInterval)
}

func TestStore_SaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	s := NewStore(path)

	want := Settings{
		CacheDir:        filepath.Join(dir, "cache"),
		SourcesDir:      filepath.Join(dir, "sources"),
		RefreshInterval: time.Hour,
		ContainerBinary: "podman",
		LogLevel:        "debug",
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSourcesManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.toml")
	content := `
[[sources]]
type = "docker"
dir = "/var/cache/gateway/docker"

[[sources]]
type = "custom"
dir = "/var/cache/gateway/custom"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	manifest, err := LoadSourcesManifest(path)
	require.NoError(t, err)
	require.Len(t, manifest.Sources, 2)
	assert.Equal(t, registry.SourceDocker, manifest.Sources[0].SourceType())
	assert.Equal(t, registry.SourceCustom, manifest.Sources[1].SourceType())
}

func TestLoadSourcesManifest_MissingFile(t *testing.T) {
	manifest, err := LoadSourcesManifest(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Empty(t, manifest.Sources)
}
