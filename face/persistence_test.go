package face

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/statestore"
	"github.com/kilroybot/kilroy-face-twitter/testutil"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
)

// newStoredFace builds an uninitialized face persisting into dir, so
// tests control when Init runs against the stored state.
func newStoredFace(t *testing.T, dir string) *Face {
	t.Helper()

	client := testutil.NewFakeClient()
	pool := toxicity.NewShared(func() (toxicity.Estimator, error) {
		return &stubEstimator{level: 0.1}, nil
	})

	f := New(client, NewCatalog(pool), WithStore(statestore.NewStore(dir)))
	t.Cleanup(f.Close)
	return f
}

func TestSaveStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newStoredFace(t, dir)
	require.NoError(t, first.Init(ctx))

	_, err := first.SetConfig(ctx, map[string]any{
		"scorer":   map[string]any{"type": "retweets"},
		"modifier": map[string]any{"enabled": true, "config": map[string]any{"threshold": 0.25}},
	})
	require.NoError(t, err)
	require.NoError(t, first.SaveState(ctx))
	first.Close()

	second := newStoredFace(t, dir)
	require.NoError(t, second.Init(ctx))

	config, err := second.GetConfig(ctx)
	require.NoError(t, err)

	scorer := config["scorer"].(map[string]any)
	assert.Equal(t, "retweets", scorer["type"])

	modifier := config["modifier"].(map[string]any)
	assert.Equal(t, true, modifier["enabled"])
	assert.Equal(t, "toxicity", modifier["type"])
	assert.InDelta(t, 0.25, modifier["config"].(map[string]any)["threshold"], 1e-9)
}

func TestSaveStateCapturesLiveEditsOfInactiveCategories(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newStoredFace(t, dir)
	require.NoError(t, first.Init(ctx))

	// Tune the modifier, then disable it. The tuned threshold lives only
	// in the parameter memory at save time.
	_, err := first.SetConfig(ctx, map[string]any{
		"modifier": map[string]any{"enabled": true, "config": map[string]any{"threshold": 0.4}},
	})
	require.NoError(t, err)
	_, err = first.SetConfig(ctx, map[string]any{
		"modifier": map[string]any{"enabled": false},
	})
	require.NoError(t, err)
	require.NoError(t, first.SaveState(ctx))
	first.Close()

	second := newStoredFace(t, dir)
	require.NoError(t, second.Init(ctx))

	config, err := second.SetConfig(ctx, map[string]any{
		"modifier": map[string]any{"enabled": true},
	})
	require.NoError(t, err)

	modifier := config["modifier"].(map[string]any)
	assert.InDelta(t, 0.4, modifier["config"].(map[string]any)["threshold"], 1e-9)
}

func TestInitWithoutStoredStateBuildsDefaults(t *testing.T) {
	f := newStoredFace(t, t.TempDir())
	require.NoError(t, f.Init(context.Background()))

	config, err := f.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "likes", config["scorer"].(map[string]any)["type"])
	assert.Equal(t, "timeline", config["scraper"].(map[string]any)["type"])
	assert.Equal(t, false, config["modifier"].(map[string]any)["enabled"])
	assert.Equal(t, false, config["restriction"].(map[string]any)["enabled"])
}

func TestInitWithCorruptDescriptorBuildsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o644))

	f := newStoredFace(t, dir)
	require.NoError(t, f.Init(context.Background()))
	assert.True(t, f.Ready())

	config, err := f.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "likes", config["scorer"].(map[string]any)["type"])
}

func TestInitWithUnknownPersistedCategoryFails(t *testing.T) {
	dir := t.TempDir()
	store := statestore.NewStore(dir)
	require.NoError(t, store.SaveDescriptor(statestore.Descriptor{
		Processor: "text",
		Scorer:    statestore.Slot{Type: "elo"},
		Scraper:   statestore.Slot{Type: "timeline"},
	}))

	f := newStoredFace(t, dir)
	err := f.Init(context.Background())

	var unknown *component.UnknownCategoryError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "elo", unknown.Category)
	assert.False(t, f.Ready())
}

func TestInitRestoresPersistedProcessorShape(t *testing.T) {
	dir := t.TempDir()
	store := statestore.NewStore(dir)
	require.NoError(t, store.SaveDescriptor(statestore.Descriptor{
		Processor: "image",
	}))

	f := newStoredFace(t, dir)
	require.NoError(t, f.Init(context.Background()))

	config, err := f.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image", config["processor"].(map[string]any)["type"])
}

func TestSaveStateWithoutStoreIsNoop(t *testing.T) {
	f, _, _ := newTestFace(t, &stubEstimator{})
	assert.NoError(t, f.SaveState(context.Background()))
}

func TestSaveStateRestoresComponentState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newStoredFace(t, dir)
	require.NoError(t, first.Init(ctx))

	_, err := first.SetConfig(ctx, map[string]any{
		"restriction": map[string]any{"enabled": true, "config": map[string]any{"threshold": 0.15}},
	})
	require.NoError(t, err)
	require.NoError(t, first.SaveState(ctx))
	first.Close()

	// The restriction's own snapshot landed in its sub-directory.
	_, statErr := os.Stat(filepath.Join(dir, "restriction", "state.json"))
	require.NoError(t, statErr)

	second := newStoredFace(t, dir)
	require.NoError(t, second.Init(ctx))

	config, err := second.GetConfig(ctx)
	require.NoError(t, err)
	restriction := config["restriction"].(map[string]any)
	assert.Equal(t, true, restriction["enabled"])
	assert.InDelta(t, 0.15, restriction["config"].(map[string]any)["threshold"], 1e-9)
}
