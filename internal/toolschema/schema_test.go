package toolschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_RequiredHasNoDefault(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"repo": {"type": "string", "description": "repository name"}
		},
		"required": ["repo"]
	}`)

	desc, err := Convert("search_repo", "Search Repo", "searches a repo", schema)
	require.NoError(t, err)
	require.Len(t, desc.Parameters, 1)
	p := desc.Parameters[0]
	assert.Equal(t, "repo", p.Name)
	assert.True(t, p.Required)
	assert.Nil(t, p.Default)
}

func TestConvert_OptionalKeepsSchemaDefault(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "default": 20}
		}
	}`)

	desc, err := Convert("search", "", "", schema)
	require.NoError(t, err)
	require.Len(t, desc.Parameters, 1)
	p := desc.Parameters[0]
	assert.False(t, p.Required)
	assert.Equal(t, float64(20), p.Default)
	assert.Equal(t, "int", p.GoType)
}

func TestConvert_NullableUnionMarksOptional(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"tag": {"type": ["string", "null"]}
		},
		"required": ["tag"]
	}`)

	desc, err := Convert("tagged", "", "", schema)
	require.NoError(t, err)
	require.Len(t, desc.Parameters, 1)
	p := desc.Parameters[0]
	assert.Equal(t, "string", p.GoType)
	assert.True(t, p.Optional)
}

func TestConvert_NoInputSchema(t *testing.T) {
	desc, err := Convert("ping", "", "", nil)
	require.NoError(t, err)
	assert.Empty(t, desc.Parameters)
}

func TestValidate_RejectsNonObjectType(t *testing.T) {
	err := Validate("bad_tool", JSONSchema{Type: "array"})
	require.Error(t, err)
}

func TestValidate_RejectsEmptyName(t *testing.T) {
	err := Validate("", JSONSchema{Type: "object"})
	require.Error(t, err)
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "mcp_github_search_issues", QualifiedName("github", "search-issues"))
}

func TestConvert_PreservesPropertyOrder(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"zebra": {"type": "string"},
			"apple": {"type": "string"},
			"mango": {"type": "string"}
		}
	}`)

	desc, err := Convert("ordered", "", "", schema)
	require.NoError(t, err)
	require.Len(t, desc.Parameters, 3)
	names := []string{desc.Parameters[0].Name, desc.Parameters[1].Name, desc.Parameters[2].Name}
	assert.Equal(t, []string{"zebra", "apple", "mango"}, names)
}

func TestDescriptor_InputSchema_RendersTypesAndRequired(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"repo": {"type": "string", "description": "repository name"},
			"limit": {"type": "integer", "default": 20}
		},
		"required": ["repo"]
	}`)

	desc, err := Convert("search_repo", "", "", schema)
	require.NoError(t, err)

	rendered := desc.InputSchema()
	assert.Equal(t, "object", rendered["type"])
	assert.Equal(t, []string{"repo"}, rendered["required"])

	properties, ok := rendered["properties"].(map[string]any)
	require.True(t, ok)
	repoProp, ok := properties["repo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", repoProp["type"])

	limitProp, ok := properties["limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", limitProp["type"])
	assert.Equal(t, float64(20), limitProp["default"])
}

func TestDescriptor_ApplyDefaults_FillsAbsentDefaultedParams(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"repo": {"type": "string"},
			"limit": {"type": "integer", "default": 20}
		},
		"required": ["repo"]
	}`)

	desc, err := Convert("search_repo", "", "", schema)
	require.NoError(t, err)

	out := desc.ApplyDefaults(map[string]any{"repo": "toolmesh/gateway"})
	assert.Equal(t, "toolmesh/gateway", out["repo"])
	assert.Equal(t, float64(20), out["limit"])
}

func TestDescriptor_ApplyDefaults_LeavesUndefaultedParamsAbsent(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"repo": {"type": "string"},
			"branch": {"type": "string"}
		},
		"required": ["repo"]
	}`)

	desc, err := Convert("search_repo", "", "", schema)
	require.NoError(t, err)

	out := desc.ApplyDefaults(map[string]any{"repo": "toolmesh/gateway"})
	_, present := out["branch"]
	assert.False(t, present)
}
