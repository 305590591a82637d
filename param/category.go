package param

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
)

// Slot is the contract a pluggable snapshot slot must satisfy for category
// switching: it names its category, carries editable configuration, and
// releases its resources on Close.
type Slot interface {
	component.Identifiable
	component.Configurable
	component.Closer
}

// CategoryAccess binds a CategoryParameter to one slot of a snapshot.
//
// Active reads the slot's current instance. Swap installs a replacement and
// returns the evicted instance so it can be closed. Stored returns the
// snapshot's per-category parameter memory for the slot; the map is owned by
// the snapshot and deep-copied with it, so mutation during a staged
// reconfiguration never leaks into the published snapshot.
type CategoryAccess[S any, C Slot] struct {
	Active func(state S) C
	Swap   func(state S, next C) C
	Stored func(state S) map[string]map[string]any
}

// CategoryParameter selects which implementation of a component family is
// active in a snapshot slot. Its value is a document of the form
//
//	{"type": <category>, "config": {...}}
//
// Setting a new category builds a fresh instance through the family registry,
// configured from the stored parameters of that category overlaid with the
// incoming config. The outgoing instance's live configuration is captured
// into the stored map first, so switching back later restores what the
// category last had.
type CategoryParameter[S any, C Slot] struct {
	name     string
	registry *component.Registry[C]
	access   CategoryAccess[S, C]
}

// NewCategoryParameter builds a category-switch parameter for one slot.
func NewCategoryParameter[S any, C Slot](
	name string,
	registry *component.Registry[C],
	access CategoryAccess[S, C],
) *CategoryParameter[S, C] {
	return &CategoryParameter[S, C]{
		name:     name,
		registry: registry,
		access:   access,
	}
}

// Name returns the parameter's field name.
func (p *CategoryParameter[S, C]) Name() string { return p.name }

// Get returns the active category name and the instance's own configuration.
func (p *CategoryParameter[S, C]) Get(_ context.Context, state S) (any, error) {
	active := p.access.Active(state)
	return map[string]any{
		"type":   active.Category(),
		"config": active.Config(),
	}, nil
}

// Set switches or reconfigures the slot's active implementation.
//
// Same category: the incoming config is overlaid on the category's stored
// parameters and applied to the active instance in place. Different category:
// the outgoing instance's live config is captured into the stored map, a
// fresh instance is built and configured, and the evicted one is closed. The
// merged parameters are written back to the stored map in both cases.
func (p *CategoryParameter[S, C]) Set(ctx context.Context, state S, value any) error {
	if current, err := p.Get(ctx, state); err == nil && jsonEqual(current, value) {
		return nil
	}

	target, err := decodeCategoryValue(value)
	if err != nil {
		return &SetError{Parameter: p.name, Cause: err}
	}

	stored := p.access.Stored(state)
	merged := mergeParams(stored[target.Type], target.Config)

	active := p.access.Active(state)
	if active.Category() == target.Type {
		if err := active.Configure(merged); err != nil {
			return &SetError{Parameter: p.name, Cause: err}
		}
		stored[target.Type] = merged
		return nil
	}

	// Capture live edits before the instance goes away, so a later switch
	// back restores what the category last had.
	stored[active.Category()] = active.Config()

	next, err := p.registry.Build(target.Type)
	if err != nil {
		return &SetError{Parameter: p.name, Cause: err}
	}
	if err := next.Configure(merged); err != nil {
		_ = next.Close(ctx)
		return &SetError{Parameter: p.name, Cause: err}
	}
	stored[target.Type] = merged

	evicted := p.access.Swap(state, next)
	if err := evicted.Close(ctx); err != nil {
		return &SetError{Parameter: p.name, Cause: err}
	}
	return nil
}

// Schema describes the parameter as a oneOf over all registered categories,
// each variant carrying that category's own config schema. Building the
// throwaway instances is cheap because builders perform no I/O.
func (p *CategoryParameter[S, C]) Schema() (map[string]any, error) {
	categories := p.registry.Categories()
	variants := make([]map[string]any, 0, len(categories))

	for _, category := range categories {
		instance, err := p.registry.Build(category)
		if err != nil {
			return nil, errors.Wrap(err, "CategoryParameter", "Schema",
				fmt.Sprintf("%s %q schema generation", p.registry.Family(), category))
		}
		schema := instance.Schema()

		variants = append(variants, map[string]any{
			"type":  "object",
			"title": prettyName(category),
			"properties": map[string]any{
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
			"required": []string{"type"},
		})
	}

	return map[string]any{
		"title": prettyName(p.name),
		"oneOf": variants,
	}, nil
}

type categoryValue struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

func decodeCategoryValue(value any) (categoryValue, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return categoryValue{}, errors.WrapInvalid(err,
			"CategoryParameter", "Set", "category value encoding")
	}

	var cv categoryValue
	if err := json.Unmarshal(raw, &cv); err != nil {
		return categoryValue{}, errors.WrapInvalid(err,
			"CategoryParameter", "Set", "category value decoding")
	}
	if cv.Type == "" {
		return categoryValue{}, errors.WrapInvalid(
			fmt.Errorf("%w: category value needs a \"type\" field", errors.ErrInvalidConfig),
			"CategoryParameter", "Set", "category value validation")
	}
	return cv, nil
}

// mergeParams overlays incoming config on the category's stored parameters;
// incoming keys win. Neither input map is mutated.
func mergeParams(stored, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(stored)+len(incoming))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// prettyName turns a snake_case field name into a title for schema display.
func prettyName(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
