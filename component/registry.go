package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kilroybot/kilroy-face-twitter/errors"
)

// UnknownCategoryError reports a category no builder is registered for.
// Callers match it with errors.As to distinguish a bad category from a
// builder failure.
type UnknownCategoryError struct {
	Family   string
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s category %q", e.Family, e.Category)
}

// Builder constructs a fresh component instance. Builders must not do
// I/O; anything that touches the network belongs in the component's
// methods, not its constructor.
type Builder[C any] func() (C, error)

// Registry manages builders for one component family (processors,
// scorers, posters, ...). It provides thread-safe registration and
// category-keyed construction.
type Registry[C any] struct {
	family   string
	builders map[string]Builder[C]
	mu       sync.RWMutex
}

// NewRegistry creates a new empty registry for the named family.
func NewRegistry[C any](family string) *Registry[C] {
	return &Registry[C]{
		family:   family,
		builders: make(map[string]Builder[C]),
	}
}

// Family returns the family name this registry serves.
func (r *Registry[C]) Family() string {
	return r.family
}

// Register adds a builder under the given category.
// Returns an error if the category is empty, the builder is nil, or a
// builder with the same category is already registered.
func (r *Registry[C]) Register(category string, builder Builder[C]) error {
	if category == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "category validation")
	}
	if builder == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "builder validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[category]; exists {
		msg := fmt.Errorf("%s category %q is already registered", r.family, category)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate category check")
	}

	r.builders[category] = builder
	return nil
}

// MustRegister registers a builder and panics on error. Catalog wiring
// happens once at startup, where a bad registration is a programming
// error rather than a runtime condition.
func (r *Registry[C]) MustRegister(category string, builder Builder[C]) {
	if err := r.Register(category, builder); err != nil {
		panic(err)
	}
}

// Has reports whether a builder is registered for the category.
func (r *Registry[C]) Has(category string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.builders[category]
	return ok
}

// Build constructs a fresh instance for the category. Unknown categories
// yield an *UnknownCategoryError.
func (r *Registry[C]) Build(category string) (C, error) {
	r.mu.RLock()
	builder, ok := r.builders[category]
	r.mu.RUnlock()

	var zero C
	if !ok {
		return zero, &UnknownCategoryError{Family: r.family, Category: category}
	}

	instance, err := builder()
	if err != nil {
		return zero, errors.Wrap(err, "Registry", "Build", fmt.Sprintf("%s %q construction", r.family, category))
	}

	return instance, nil
}

// Categories returns all registered category names in sorted order.
func (r *Registry[C]) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of registered categories.
func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.builders)
}
