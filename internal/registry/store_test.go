package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	rebuilds int
	last     []Entry
}

func (f *fakeIndexer) Rebuild(entries []Entry) {
	f.rebuilds++
	f.last = entries
}

func testEntry(id string) Entry {
	return Entry{
		ID:           id,
		Name:         id,
		Description:  "a test server",
		Source:       SourceCustom,
		LaunchMethod: LaunchStdioProxy,
		ServerCommand: ServerCommand{
			Command: "echo",
		},
	}
}

func TestStore_AddAndGetEntry(t *testing.T) {
	idx := &fakeIndexer{}
	s := NewStore(t.TempDir(), idx)
	require.NoError(t, s.Load())
	afterLoad := idx.rebuilds

	require.NoError(t, s.AddEntry(testEntry("example/server")))

	got, err := s.GetEntry("example/server")
	require.NoError(t, err)
	assert.Equal(t, "example/server", got.ID)
	assert.Equal(t, afterLoad+1, idx.rebuilds)
}

func TestStore_GetEntry_NotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	require.NoError(t, s.Load())

	_, err := s.GetEntry("missing/server")
	require.Error(t, err)
}

func TestStore_AddEntry_RejectsInvalidID(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	require.NoError(t, s.Load())

	e := testEntry("Bad ID!")
	err := s.AddEntry(e)
	require.Error(t, err)
}

func TestStore_BulkAddEntries_SingleIndexRebuild(t *testing.T) {
	idx := &fakeIndexer{}
	s := NewStore(t.TempDir(), idx)
	require.NoError(t, s.Load())
	afterLoad := idx.rebuilds

	entries := []Entry{testEntry("a/one"), testEntry("a/two"), testEntry("a/three")}
	require.NoError(t, s.BulkAddEntries(entries))

	assert.Equal(t, afterLoad+1, idx.rebuilds)
	assert.Len(t, s.ListAll(), 3)
}

func TestStore_ActiveMountLifecycle(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	require.NoError(t, s.Load())
	require.NoError(t, s.AddEntry(testEntry("example/server")))

	mount := ActiveMount{EntryID: "example/server", Name: "example-server", Prefix: "example_server"}
	require.NoError(t, s.AddActiveMount(mount))

	_, err := s.GetEntry("example/server")
	require.NoError(t, err)

	got, ok := s.GetActiveMount("example/server")
	require.True(t, ok)
	assert.Equal(t, "example_server", got.Prefix)

	err = s.AddActiveMount(mount)
	require.Error(t, err)

	require.NoError(t, s.RemoveActiveMount("example/server"))
	_, ok = s.GetActiveMount("example/server")
	assert.False(t, ok)
}

func TestStore_Load_PrunesMountsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	s1 := NewStore(dir, nil)
	require.NoError(t, s1.Load())
	require.NoError(t, s1.AddEntry(testEntry("example/server")))
	require.NoError(t, s1.AddActiveMount(ActiveMount{EntryID: "example/server", Name: "x", Prefix: "x"}))

	s2 := NewStore(dir, nil)
	require.NoError(t, s2.Load())

	assert.Len(t, s2.ListAll(), 1)
	assert.Empty(t, s2.ListActiveMounts())
}

func TestValidateEnvKey(t *testing.T) {
	require.NoError(t, ValidateEnvKey("GITHUB_TOKEN"))
	require.NoError(t, ValidateEnvKey("MCP_FOO"))
	require.Error(t, ValidateEnvKey("RANDOM_SECRET"))
	require.Error(t, ValidateEnvKey("lowercase"))
}
