// Package statestore persists face state to a directory: one descriptor
// file naming the active category per slot plus the per-category
// parameter maps, and one sub-directory per component that opts into its
// own snapshot. A missing or unreadable descriptor is a recoverable
// condition; the caller falls back to defaults instead of failing.
package statestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
)

const (
	descriptorFile = "state.json"
	dirMode        = 0o755
	fileMode       = 0o644
)

// Slot records one required component slot: the active category and the
// parameter memory of every category that has ever been configured.
type Slot struct {
	Type   string                    `json:"type"`
	Params map[string]map[string]any `json:"params,omitempty"`
}

// OptionalSlot records one slot that may be empty. Type is meaningful
// only while Enabled; Params is kept either way so re-enabling restores
// the last configuration.
type OptionalSlot struct {
	Enabled bool                      `json:"enabled"`
	Type    string                    `json:"type,omitempty"`
	Params  map[string]map[string]any `json:"params,omitempty"`
}

// Descriptor is the persisted shape of the face's logical configuration.
type Descriptor struct {
	Processor   string       `json:"processor"`
	Scorer      Slot         `json:"scorer"`
	Scraper     Slot         `json:"scraper"`
	Modifier    OptionalSlot `json:"modifier"`
	Restriction OptionalSlot `json:"restriction"`
}

// Store reads and writes face state under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store rooted at dir. The directory is created on
// first save, not here.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "statestore", "dir", dir)
	return s
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// SaveDescriptor writes the descriptor atomically: the document goes to
// a temporary file first and replaces the previous one with a rename.
func (s *Store) SaveDescriptor(d Descriptor) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return errors.Wrap(err, "Store", "SaveDescriptor", "state directory creation")
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.WrapFatal(err, "Store", "SaveDescriptor", "descriptor encoding")
	}

	return s.writeAtomic(filepath.Join(s.dir, descriptorFile), data)
}

// LoadDescriptor reads the descriptor. A missing or unparsable file is
// reported with ok=false and no error, logged at warn level when the
// file existed but could not be read; the caller builds defaults. Only
// I/O failures on an existing, readable path surface as errors.
func (s *Store) LoadDescriptor() (Descriptor, bool, error) {
	path := filepath.Join(s.dir, descriptorFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Descriptor{}, false, nil
	}
	if err != nil {
		return Descriptor{}, false, errors.Wrap(err, "Store", "LoadDescriptor", "descriptor read")
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		s.logger.Warn("descriptor is corrupt, falling back to defaults", "error", err)
		return Descriptor{}, false, nil
	}

	return d, true, nil
}

// SaveComponent persists one component's private snapshot under its own
// sub-directory. Components that do not implement Persistable are
// skipped silently.
func (s *Store) SaveComponent(name string, c any) error {
	p, ok := c.(component.Persistable)
	if !ok {
		return nil
	}

	data, err := p.SaveState()
	if err != nil {
		return errors.Wrap(err, "Store", "SaveComponent",
			fmt.Sprintf("%s state serialization", name))
	}

	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrap(err, "Store", "SaveComponent",
			fmt.Sprintf("%s state directory creation", name))
	}

	return s.writeAtomic(filepath.Join(dir, descriptorFile), data)
}

// LoadComponent restores one component's private snapshot. A missing
// snapshot is a no-op; components keep their defaults. Corrupt state is
// surfaced: the component's own LoadState decides what it accepts.
func (s *Store) LoadComponent(name string, c any) error {
	p, ok := c.(component.Persistable)
	if !ok {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name, descriptorFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "Store", "LoadComponent",
			fmt.Sprintf("%s state read", name))
	}

	if err := p.LoadState(data); err != nil {
		return errors.Wrap(err, "Store", "LoadComponent",
			fmt.Sprintf("%s state restoration", name))
	}
	return nil
}

// writeAtomic writes data to path through a temporary sibling and a
// rename, so readers never observe a partially written file.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return errors.Wrap(err, "Store", "writeAtomic", "temporary file creation")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "Store", "writeAtomic", "state write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "Store", "writeAtomic", "state flush")
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "Store", "writeAtomic", "state permissions")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "Store", "writeAtomic", "state replacement")
	}
	return nil
}
