// Package param defines the tunable-parameter contract for composite state
// snapshots. A Parameter binds one logical configuration field to a snapshot:
// it reads the current value, writes a new value onto a staged copy during
// reconfiguration, and describes itself with a JSON-schema fragment.
//
// Writes short-circuit when the incoming value equals the current one under
// JSON normalization, so operators re-submitting unchanged configuration do
// not trigger rebuilds. Failures from the underlying accessors are wrapped
// into GetError and SetError so callers see a stable surface while the
// original cause stays available for diagnostics.
package param

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Parameter is one tunable field of a state snapshot of type S.
//
// Set is only called against staged copies during reconfiguration, never
// against a published snapshot, so implementations may mutate freely.
type Parameter[S any] interface {
	// Name returns the stable field name used in configuration documents.
	Name() string

	// Get reads the current value from the snapshot.
	Get(ctx context.Context, state S) (any, error)

	// Set writes a new value onto the snapshot. Equal values under JSON
	// normalization are a successful no-op.
	Set(ctx context.Context, state S, value any) error

	// Schema describes the parameter as a JSON-schema fragment.
	Schema() (map[string]any, error)
}

// GetError wraps a failure from a parameter's underlying getter.
type GetError struct {
	Parameter string
	Cause     error
}

func (e *GetError) Error() string {
	return fmt.Sprintf("parameter %q get failed: %v", e.Parameter, e.Cause)
}

func (e *GetError) Unwrap() error { return e.Cause }

// SetError wraps a failure from a parameter's underlying setter.
type SetError struct {
	Parameter string
	Cause     error
}

func (e *SetError) Error() string {
	return fmt.Sprintf("parameter %q set failed: %v", e.Parameter, e.Cause)
}

func (e *SetError) Unwrap() error { return e.Cause }

// Binding is a Parameter backed by a pair of accessor functions and a static
// schema fragment. It covers directly-stored fields; category switching uses
// CategoryParameter instead.
type Binding[S any] struct {
	name   string
	schema map[string]any
	get    func(state S) (any, error)
	set    func(state S, value any) error
}

// NewBinding builds a Binding from accessor functions. Both accessors must be
// non-nil; the schema fragment is served verbatim.
func NewBinding[S any](
	name string,
	schema map[string]any,
	get func(state S) (any, error),
	set func(state S, value any) error,
) *Binding[S] {
	return &Binding[S]{
		name:   name,
		schema: schema,
		get:    get,
		set:    set,
	}
}

// Name returns the binding's field name.
func (b *Binding[S]) Name() string { return b.name }

// Get reads the current value, wrapping accessor failures in GetError.
func (b *Binding[S]) Get(_ context.Context, state S) (any, error) {
	value, err := b.get(state)
	if err != nil {
		return nil, &GetError{Parameter: b.name, Cause: err}
	}
	return value, nil
}

// Set writes value onto the snapshot. If the current value already equals
// value under JSON normalization the write is skipped. Accessor failures are
// wrapped in SetError.
func (b *Binding[S]) Set(_ context.Context, state S, value any) error {
	if current, err := b.get(state); err == nil && jsonEqual(current, value) {
		return nil
	}

	if err := b.set(state, value); err != nil {
		return &SetError{Parameter: b.name, Cause: err}
	}
	return nil
}

// Schema returns the binding's static schema fragment.
func (b *Binding[S]) Schema() (map[string]any, error) {
	return b.schema, nil
}

// jsonEqual reports whether a and b describe the same JSON document. Both
// sides are round-tripped through encoding/json so that typed structs,
// map[string]any values, and differing numeric widths all compare on their
// wire form. Values that fail to encode are never equal.
func jsonEqual(a, b any) bool {
	normA, ok := jsonNormalize(a)
	if !ok {
		return false
	}
	normB, ok := jsonNormalize(b)
	if !ok {
		return false
	}
	return reflect.DeepEqual(normA, normB)
}

func jsonNormalize(v any) (any, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, false
	}
	return norm, true
}
