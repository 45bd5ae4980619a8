// Package toolschema converts a child MCP server's JSON Schema tool
// descriptions into a flat, data-only parameter list the mount engine
// and upstream tool surface can dispatch against. Go has no runtime
// function-signature synthesis, so rather than building a callable like
// the reference converter does, this package produces a Descriptor
// whose Parameters a single generic dispatcher walks at call time.
package toolschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/logger"
)

// JSONSchema is the subset of JSON Schema used by MCP tool input
// schemas: always an object at the top level, with named properties.
// Properties is kept as raw JSON (rather than decoded straight into a
// map) so Convert can recover the original property order, which a Go
// map does not preserve.
type JSONSchema struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Required   []string        `json:"required"`
}

// PropertySchema is a single property's schema.
type PropertySchema struct {
	Type        any    `json:"type"` // string, or ["string","null"] for nullable
	Format       string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Parameter is one resolved, dispatch-ready parameter.
type Parameter struct {
	Name        string
	GoType      string // "string", "float64", "int", "bool", "map", "slice", "any"
	Required    bool
	Optional    bool // true when the property was declared nullable or is not required
	Default     any
	Description string
}

// Descriptor is a converted, dispatch-ready tool description.
type Descriptor struct {
	Name        string
	Title       string
	Description string
	Parameters  []Parameter
}

// goTypeToJSONType is the inverse of jsonTypeToGoType, used to render a
// Parameter back into a JSON-Schema property when the descriptor is
// surfaced upstream. "any" carries no type constraint.
func goTypeToJSONType(goType string) string {
	switch goType {
	case "string":
		return "string"
	case "float64":
		return "number"
	case "int":
		return "integer"
	case "bool":
		return "boolean"
	case "map":
		return "object"
	case "slice":
		return "array"
	default:
		return ""
	}
}

// InputSchema renders the descriptor's parameters back into a JSON
// Schema object, for serialization onto an upstream tools/list entry.
func (d *Descriptor) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		prop := map[string]any{}
		if t := goTypeToJSONType(p.GoType); t != "" {
			prop["type"] = t
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ApplyDefaults fills in any absent, non-required parameter that carries
// a schema default, per spec.md section 8: "default-valued parameter
// absent ⇒ default is injected into the dispatched payload." Parameters
// with no default and omitted by the caller are left absent, not
// nulled.
func (d *Descriptor) ApplyDefaults(arguments map[string]any) map[string]any {
	if len(d.Parameters) == 0 {
		return arguments
	}

	out := make(map[string]any, len(arguments))
	for k, v := range arguments {
		out[k] = v
	}
	for _, p := range d.Parameters {
		if p.Required || p.Default == nil {
			continue
		}
		if _, present := out[p.Name]; present {
			continue
		}
		out[p.Name] = p.Default
	}
	return out
}

// jsonTypeToGoType mirrors the reference converter's JSON-type to
// language-type mapping table, adapted to Go's dispatch-time type tags
// instead of Python runtime types.
func jsonTypeToGoType(jsonType string) string {
	switch jsonType {
	case "string":
		return "string"
	case "number":
		return "float64"
	case "integer":
		return "int"
	case "boolean":
		return "bool"
	case "object":
		return "map"
	case "array":
		return "slice"
	case "null":
		return "any"
	default:
		return "any"
	}
}

// resolveType handles the ["type","null"] nullable-union form the same
// way the reference converter does: picks the first non-null type and
// marks the parameter optional.
func resolveType(raw any) (goType string, optional bool) {
	switch t := raw.(type) {
	case string:
		return jsonTypeToGoType(t), false
	case []any:
		for _, v := range t {
			s, _ := v.(string)
			if s == "null" {
				optional = true
				continue
			}
			if goType == "" && s != "" {
				goType = jsonTypeToGoType(s)
			}
		}
		if goType == "" {
			goType = "any"
		}
		return goType, optional
	default:
		return "any", false
	}
}

func isRequired(name string, required []string) bool {
	for _, r := range required {
		if r == name {
			return true
		}
	}
	return false
}

// orderedPropertyNames walks the raw properties object with a token
// decoder to recover its key order, since unmarshaling into a Go map
// loses it. Returns (nil, nil) when raw is empty or not an object.
func orderedPropertyNames(raw json.RawMessage) ([]string, error) {
	if !isJSONObject(raw) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // consume '{'
		return nil, err
	}

	var names []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		names = append(names, key)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Convert turns a tool's raw input schema into a Descriptor, applying the
// reference converter's required/default/optional resolution: a
// required property has no default; an optional property keeps its
// schema default if present, or becomes nil otherwise. Parameters are
// emitted in the schema's own property order.
func Convert(toolName, title, description string, inputSchema json.RawMessage) (*Descriptor, error) {
	if len(inputSchema) == 0 {
		return &Descriptor{Name: toolName, Title: title, Description: description}, nil
	}

	var schema JSONSchema
	if err := json.Unmarshal(inputSchema, &schema); err != nil {
		return nil, fmt.Errorf("%w: parse input schema for %q: %v", gatewayerr.ErrSchemaInvalid, toolName, err)
	}

	if err := Validate(toolName, schema); err != nil {
		return nil, err
	}

	var properties map[string]PropertySchema
	if len(schema.Properties) > 0 {
		if err := json.Unmarshal(schema.Properties, &properties); err != nil {
			return nil, fmt.Errorf("%w: parse input schema properties for %q: %v", gatewayerr.ErrSchemaInvalid, toolName, err)
		}
	}

	order, err := orderedPropertyNames(schema.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: parse input schema property order for %q: %v", gatewayerr.ErrSchemaInvalid, toolName, err)
	}

	desc := &Descriptor{Name: toolName, Title: title, Description: description}
	for _, name := range order {
		prop := properties[name]
		goType, optional := resolveType(prop.Type)
		if goType == "map" || goType == "slice" {
			logger.AddLog("WARN", fmt.Sprintf("%s.%s: object/array parameters pass through opaquely", toolName, name))
		}
		required := isRequired(name, schema.Required)

		param := Parameter{
			Name:        name,
			GoType:      goType,
			Required:    required,
			Optional:    optional || !required,
			Description: prop.Description,
		}
		if !required {
			param.Default = prop.Default
		}
		desc.Parameters = append(desc.Parameters, param)
	}
	return desc, nil
}

// Validate rejects structurally malformed tool schemas, matching the
// reference converter's validate_tool_schema checks.
func Validate(toolName string, schema JSONSchema) error {
	if toolName == "" {
		return fmt.Errorf("%w: tool has no name", gatewayerr.ErrSchemaInvalid)
	}
	if schema.Type != "" && schema.Type != "object" {
		return fmt.Errorf("%w: %q input schema must be of type object, got %q", gatewayerr.ErrSchemaInvalid, toolName, schema.Type)
	}
	if len(schema.Properties) > 0 && !isJSONObject(schema.Properties) {
		return fmt.Errorf("%w: %q inputSchema.properties must be an object", gatewayerr.ErrSchemaInvalid, toolName)
	}
	return nil
}

// SanitizeName converts a tool name containing hyphens into one safe for
// use as a dispatch key, matching the reference converter's function-name
// sanitization.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// QualifiedName builds the prefixed name a dynamically mounted tool is
// exposed under, e.g. "mcp_github_search_issues".
func QualifiedName(prefix, toolName string) string {
	return fmt.Sprintf("mcp_%s_%s", prefix, SanitizeName(toolName))
}
