// Package component defines the capability contracts shared by the face's
// pluggable parts and the category registries that organize them.
package component

import (
	"context"
	"encoding/json"

	"github.com/kilroybot/kilroy-face-twitter/errors"
)

// Identifiable names a component inside its family. Categories are
// lowercase identifiers ("text-and-image", "timeline", "likes") and must
// be unique within a family.
type Identifiable interface {
	Category() string
}

// Configurable exposes a component's runtime-tunable properties.
//
// Config returns the current values as a JSON-compatible map. Configure
// applies a partial update: keys absent from params keep their previous
// values, unknown keys are ignored for forward compatibility. Schema
// describes the properties for validation and UI rendering.
type Configurable interface {
	Config() map[string]any
	Configure(params map[string]any) error
	Schema() ConfigSchema
}

// Persistable is implemented by components that carry state worth keeping
// across restarts, such as tuned thresholds.
type Persistable interface {
	SaveState() ([]byte, error)
	LoadState(data []byte) error
}

// Closer releases resources a component acquired at build time.
// Close must be idempotent.
type Closer interface {
	Close(ctx context.Context) error
}

// Stateless satisfies Configurable for components with no runtime-tunable
// properties. Embed it instead of repeating the three empty methods.
type Stateless struct{}

// Config returns an empty property map.
func (Stateless) Config() map[string]any { return map[string]any{} }

// Configure accepts and ignores any parameters.
func (Stateless) Configure(map[string]any) error { return nil }

// Schema returns an empty schema.
func (Stateless) Schema() ConfigSchema {
	return ConfigSchema{Properties: map[string]PropertySchema{}, Required: []string{}}
}

// NopCloser satisfies Closer for components that hold no resources.
type NopCloser struct{}

// Close does nothing.
func (NopCloser) Close(context.Context) error { return nil }

// ConfigSchema describes the configuration parameters for a component
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single configuration property
type PropertySchema struct {
	Type        string   `json:"type"` // "string", "int", "bool", "float", "enum", "array", "object"
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`     // Valid string values
	Minimum     *float64 `json:"minimum,omitempty"`  // For numeric types
	Maximum     *float64 `json:"maximum,omitempty"`  // For numeric types
	Category    string   `json:"category,omitempty"` // "basic" or "advanced" for UI organization
}

// DecodeParams applies a partial parameter map onto dst, which must be a
// pointer to a config struct. Values round-trip through JSON, so the map
// may carry float64 for integer fields the way decoded HTTP bodies do.
// Fields absent from params keep their current values in dst.
func DecodeParams(params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return errors.WrapInvalid(err, "Component", "DecodeParams", "parameter encoding")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.WrapInvalid(err, "Component", "DecodeParams", "parameter decoding")
	}
	return nil
}

// ConfigMap renders a config struct as the JSON-compatible map returned
// by Config implementations. It is the inverse of DecodeParams.
func ConfigMap(src any) map[string]any {
	data, err := json.Marshal(src)
	if err != nil {
		return map[string]any{}
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}
