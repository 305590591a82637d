package statestore

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	saved := Descriptor{
		Processor: "text",
		Scorer: Slot{
			Type:   "retweets",
			Params: map[string]map[string]any{"retweets": {}},
		},
		Scraper: Slot{Type: "timeline"},
		Modifier: OptionalSlot{
			Enabled: true,
			Type:    "toxicity",
			Params:  map[string]map[string]any{"toxicity": {"threshold": 0.25, "alpha": 0.9}},
		},
		Restriction: OptionalSlot{Enabled: false},
	}
	require.NoError(t, store.SaveDescriptor(saved))

	loaded, ok, err := store.LoadDescriptor()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, loaded)
}

func TestLoadDescriptorMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))

	_, ok, err := store.LoadDescriptor()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadDescriptorCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("%%"), 0o644))

	store := NewStore(dir)
	_, ok, err := store.LoadDescriptor()
	assert.NoError(t, err, "corrupt state is recoverable, not fatal")
	assert.False(t, ok)
}

func TestSaveDescriptorLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.SaveDescriptor(Descriptor{Processor: "text"}))
	require.NoError(t, store.SaveDescriptor(Descriptor{Processor: "image"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	loaded, ok, err := store.LoadDescriptor()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "image", loaded.Processor)
}

// fakePersistable is a component whose whole state is one counter.
type fakePersistable struct {
	Counter int `json:"counter"`
	loadErr error
}

func (f *fakePersistable) SaveState() ([]byte, error) {
	return json.Marshal(f)
}

func (f *fakePersistable) LoadState(data []byte) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	return json.Unmarshal(data, f)
}

func TestComponentStateRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveComponent("modifier", &fakePersistable{Counter: 7}))

	restored := &fakePersistable{}
	require.NoError(t, store.LoadComponent("modifier", restored))
	assert.Equal(t, 7, restored.Counter)
}

func TestSaveComponentSkipsNonPersistable(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.SaveComponent("scorer", struct{}{}))

	_, err := os.Stat(filepath.Join(dir, "scorer"))
	assert.True(t, os.IsNotExist(err), "nothing should be written for components without state")
}

func TestLoadComponentMissingIsNoop(t *testing.T) {
	store := NewStore(t.TempDir())

	restored := &fakePersistable{Counter: 3}
	require.NoError(t, store.LoadComponent("modifier", restored))
	assert.Equal(t, 3, restored.Counter, "defaults stay in place without a snapshot")
}

func TestLoadComponentSurfacesRestoreFailure(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.SaveComponent("modifier", &fakePersistable{Counter: 1}))

	sentinel := stderrors.New("bad state")
	err := store.LoadComponent("modifier", &fakePersistable{loadErr: sentinel})
	assert.ErrorIs(t, err, sentinel)
}
