package param

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
)

// OptionalAccess binds an OptionalCategoryParameter to a snapshot slot
// that may be empty. Enabled reports whether the slot currently holds
// an instance; Active is only meaningful while it does. Swap installs
// next (the zero value empties the slot) and returns the evicted
// instance. Stored follows the CategoryAccess contract.
type OptionalAccess[S any, C Slot] struct {
	Enabled func(state S) bool
	Active  func(state S) C
	Swap    func(state S, next C) C
	Stored  func(state S) map[string]map[string]any
}

// OptionalCategoryParameter selects whether a snapshot slot is filled
// at all, and with which implementation. Its value is a document of the
// form
//
//	{"enabled": <bool>, "type": <category>, "config": {...}}
//
// Disabling captures the outgoing instance's live configuration and
// closes it. Enabling without a type falls back to the active category,
// or to the family default when the slot is empty. Everything else
// follows CategoryParameter.
type OptionalCategoryParameter[S any, C Slot] struct {
	name            string
	registry        *component.Registry[C]
	defaultCategory string
	access          OptionalAccess[S, C]
}

// NewOptionalCategoryParameter builds an optional-slot parameter.
// defaultCategory is used when an enable names no type.
func NewOptionalCategoryParameter[S any, C Slot](
	name string,
	registry *component.Registry[C],
	defaultCategory string,
	access OptionalAccess[S, C],
) *OptionalCategoryParameter[S, C] {
	return &OptionalCategoryParameter[S, C]{
		name:            name,
		registry:        registry,
		defaultCategory: defaultCategory,
		access:          access,
	}
}

// Name returns the parameter's field name.
func (p *OptionalCategoryParameter[S, C]) Name() string { return p.name }

// Get returns the slot's enablement, and while enabled the active
// category with its configuration.
func (p *OptionalCategoryParameter[S, C]) Get(_ context.Context, state S) (any, error) {
	if !p.access.Enabled(state) {
		return map[string]any{"enabled": false}, nil
	}

	active := p.access.Active(state)
	return map[string]any{
		"enabled": true,
		"type":    active.Category(),
		"config":  active.Config(),
	}, nil
}

// Set enables, disables, switches, or reconfigures the slot.
func (p *OptionalCategoryParameter[S, C]) Set(ctx context.Context, state S, value any) error {
	if current, err := p.Get(ctx, state); err == nil && jsonEqual(current, value) {
		return nil
	}

	target, err := decodeOptionalValue(value)
	if err != nil {
		return &SetError{Parameter: p.name, Cause: err}
	}

	stored := p.access.Stored(state)

	if !target.enabled {
		if !p.access.Enabled(state) {
			return nil
		}
		active := p.access.Active(state)
		stored[active.Category()] = active.Config()

		var empty C
		evicted := p.access.Swap(state, empty)
		if err := evicted.Close(ctx); err != nil {
			return &SetError{Parameter: p.name, Cause: err}
		}
		return nil
	}

	category := target.Type
	if category == "" {
		if p.access.Enabled(state) {
			category = p.access.Active(state).Category()
		} else {
			category = p.defaultCategory
		}
	}
	merged := mergeParams(stored[category], target.Config)

	wasEnabled := p.access.Enabled(state)
	if wasEnabled {
		active := p.access.Active(state)
		if active.Category() == category {
			if err := active.Configure(merged); err != nil {
				return &SetError{Parameter: p.name, Cause: err}
			}
			stored[category] = merged
			return nil
		}
		stored[active.Category()] = active.Config()
	}

	next, err := p.registry.Build(category)
	if err != nil {
		return &SetError{Parameter: p.name, Cause: err}
	}
	if err := next.Configure(merged); err != nil {
		_ = next.Close(ctx)
		return &SetError{Parameter: p.name, Cause: err}
	}
	stored[category] = merged

	evicted := p.access.Swap(state, next)
	if wasEnabled {
		if err := evicted.Close(ctx); err != nil {
			return &SetError{Parameter: p.name, Cause: err}
		}
	}
	return nil
}

// Schema describes the parameter as a oneOf whose first variant is the
// disabled form, followed by one enabled variant per registered
// category.
func (p *OptionalCategoryParameter[S, C]) Schema() (map[string]any, error) {
	variants := []map[string]any{{
		"type":  "object",
		"title": "Disabled",
		"properties": map[string]any{
			"enabled": map[string]any{
				"type":  "boolean",
				"const": false,
				"title": "Enabled",
			},
		},
		"required": []string{"enabled"},
	}}

	for _, category := range p.registry.Categories() {
		instance, err := p.registry.Build(category)
		if err != nil {
			return nil, errors.Wrap(err, "OptionalCategoryParameter", "Schema",
				fmt.Sprintf("%s %q schema generation", p.registry.Family(), category))
		}
		schema := instance.Schema()

		variants = append(variants, map[string]any{
			"type":  "object",
			"title": prettyName(category),
			"properties": map[string]any{
				"enabled": map[string]any{
					"type":  "boolean",
					"const": true,
					"title": "Enabled",
				},
				"type": map[string]any{
					"type":  "string",
					"const": category,
					"title": "Type",
				},
				"config": map[string]any{
					"type":       "object",
					"title":      "Config",
					"properties": schema.Properties,
					"required":   schema.Required,
				},
			},
			"required": []string{"enabled", "type"},
		})
	}

	return map[string]any{
		"title": prettyName(p.name),
		"oneOf": variants,
	}, nil
}

type optionalValue struct {
	enabled bool
	Type    string
	Config  map[string]any
}

func decodeOptionalValue(value any) (optionalValue, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return optionalValue{}, errors.WrapInvalid(err,
			"OptionalCategoryParameter", "Set", "optional value encoding")
	}

	var doc struct {
		Enabled *bool          `json:"enabled"`
		Type    string         `json:"type"`
		Config  map[string]any `json:"config"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return optionalValue{}, errors.WrapInvalid(err,
			"OptionalCategoryParameter", "Set", "optional value decoding")
	}

	// An omitted enabled flag means the caller is configuring the slot,
	// which only makes sense enabled.
	ov := optionalValue{enabled: true, Type: doc.Type, Config: doc.Config}
	if doc.Enabled != nil {
		ov.enabled = *doc.Enabled
	}
	return ov, nil
}
