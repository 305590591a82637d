package param

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilroybot/kilroy-face-twitter/component"
	kerrors "github.com/kilroybot/kilroy-face-twitter/errors"
)

type confState struct {
	limit int
}

func limitBinding(setCalls *int) *Binding[*confState] {
	return NewBinding(
		"limit",
		map[string]any{"type": "integer", "title": "Limit", "minimum": 0},
		func(s *confState) (any, error) {
			return s.limit, nil
		},
		func(s *confState, value any) error {
			if setCalls != nil {
				*setCalls++
			}
			f, ok := value.(float64)
			if !ok {
				i, ok := value.(int)
				if !ok {
					return fmt.Errorf("limit must be a number, got %T", value)
				}
				f = float64(i)
			}
			if f < 0 {
				return fmt.Errorf("limit must be non-negative")
			}
			s.limit = int(f)
			return nil
		},
	)
}

func TestBindingGetSet(t *testing.T) {
	ctx := context.Background()
	state := &confState{limit: 10}
	binding := limitBinding(nil)

	assert.Equal(t, "limit", binding.Name())

	value, err := binding.Get(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, 10, value)

	require.NoError(t, binding.Set(ctx, state, float64(25)))

	value, err = binding.Get(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, 25, value)
}

func TestBindingSetShortCircuits(t *testing.T) {
	ctx := context.Background()
	state := &confState{}
	setCalls := 0
	binding := limitBinding(&setCalls)

	require.NoError(t, binding.Set(ctx, state, 5))
	assert.Equal(t, 1, setCalls)
	assert.Equal(t, 5, state.limit)

	// Same value under JSON normalization, different Go type
	require.NoError(t, binding.Set(ctx, state, float64(5)))
	assert.Equal(t, 1, setCalls, "equal value should not reach the setter")

	require.NoError(t, binding.Set(ctx, state, 6))
	assert.Equal(t, 2, setCalls)
}

func TestBindingSetWrapsFailures(t *testing.T) {
	ctx := context.Background()
	state := &confState{limit: 1}
	binding := limitBinding(nil)

	err := binding.Set(ctx, state, float64(-3))
	require.Error(t, err)

	var setErr *SetError
	require.True(t, stderrors.As(err, &setErr))
	assert.Equal(t, "limit", setErr.Parameter)
	assert.Contains(t, err.Error(), `parameter "limit" set failed`)
	assert.Equal(t, 1, state.limit, "failed set must leave the value untouched")
}

func TestBindingGetWrapsFailures(t *testing.T) {
	ctx := context.Background()
	cause := fmt.Errorf("backing field missing")
	binding := NewBinding(
		"broken",
		map[string]any{"type": "string"},
		func(*confState) (any, error) { return nil, cause },
		func(*confState, any) error { return nil },
	)

	_, err := binding.Get(ctx, &confState{})
	require.Error(t, err)

	var getErr *GetError
	require.True(t, stderrors.As(err, &getErr))
	assert.Equal(t, "broken", getErr.Parameter)
	assert.True(t, stderrors.Is(err, cause))
}

func TestBindingSchema(t *testing.T) {
	binding := limitBinding(nil)

	schema, err := binding.Schema()
	require.NoError(t, err)
	assert.Equal(t, "integer", schema["type"])
	assert.Equal(t, "Limit", schema["title"])
}

func TestJSONEqual(t *testing.T) {
	type pair struct {
		B string `json:"b"`
		A int    `json:"a"`
	}

	assert.True(t, jsonEqual(1, float64(1)))
	assert.True(t, jsonEqual(
		map[string]any{"a": 1, "b": "x"},
		pair{A: 1, B: "x"},
	))
	assert.False(t, jsonEqual(map[string]any{}, nil))
	assert.False(t, jsonEqual(1, "1"))
	assert.False(t, jsonEqual(func() {}, func() {}), "unencodable values are never equal")
}

// fakeTuner is a minimal Slot implementation for category switching tests.
type fakeTuner struct {
	category   string
	rate       float64
	configures int
	closed     bool
	closeErr   error
}

type fakeTunerConfig struct {
	Rate *float64 `json:"rate"`
}

func (f *fakeTuner) Category() string { return f.category }

func (f *fakeTuner) Config() map[string]any {
	return map[string]any{"rate": f.rate}
}

func (f *fakeTuner) Configure(params map[string]any) error {
	f.configures++
	var cfg fakeTunerConfig
	if err := component.DecodeParams(params, &cfg); err != nil {
		return err
	}
	if cfg.Rate != nil {
		if *cfg.Rate < 0 {
			return fmt.Errorf("rate must be non-negative")
		}
		f.rate = *cfg.Rate
	}
	return nil
}

func (f *fakeTuner) Schema() component.ConfigSchema {
	return component.ConfigSchema{
		Properties: map[string]component.PropertySchema{
			"rate": {Type: "float", Description: "Playback rate"},
		},
	}
}

func (f *fakeTuner) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

type tunerState struct {
	tuner  *fakeTuner
	stored map[string]map[string]any
}

func newTunerParameter(t *testing.T) (*CategoryParameter[*tunerState, *fakeTuner], *tunerState) {
	t.Helper()

	registry := component.NewRegistry[*fakeTuner]("tuner")
	registry.MustRegister("alpha", func() (*fakeTuner, error) {
		return &fakeTuner{category: "alpha", rate: 1}, nil
	})
	registry.MustRegister("beta", func() (*fakeTuner, error) {
		return &fakeTuner{category: "beta", rate: 2}, nil
	})

	state := &tunerState{
		tuner:  &fakeTuner{category: "alpha", rate: 1},
		stored: map[string]map[string]any{},
	}

	parameter := NewCategoryParameter("tuner", registry, CategoryAccess[*tunerState, *fakeTuner]{
		Active: func(s *tunerState) *fakeTuner { return s.tuner },
		Swap: func(s *tunerState, next *fakeTuner) *fakeTuner {
			prev := s.tuner
			s.tuner = next
			return prev
		},
		Stored: func(s *tunerState) map[string]map[string]any { return s.stored },
	})

	return parameter, state
}

func TestCategoryParameterGet(t *testing.T) {
	parameter, state := newTunerParameter(t)

	value, err := parameter.Get(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":   "alpha",
		"config": map[string]any{"rate": 1.0},
	}, value)
}

func TestCategoryParameterSameCategoryReconfigures(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)
	original := state.tuner

	err := parameter.Set(ctx, state, map[string]any{
		"type":   "alpha",
		"config": map[string]any{"rate": 3.5},
	})
	require.NoError(t, err)

	assert.Same(t, original, state.tuner, "same category must not rebuild")
	assert.Equal(t, 3.5, state.tuner.rate)
	assert.Equal(t, map[string]any{"rate": 3.5}, state.stored["alpha"],
		"live edits write through to the stored map")
}

func TestCategoryParameterSwitchCapturesOutgoingConfig(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)
	outgoing := state.tuner
	outgoing.rate = 7 // live edit never written through the parameter

	err := parameter.Set(ctx, state, map[string]any{"type": "beta"})
	require.NoError(t, err)

	assert.Equal(t, "beta", state.tuner.Category())
	assert.Equal(t, 2.0, state.tuner.rate, "fresh build keeps family default")
	assert.True(t, outgoing.closed, "evicted instance must be closed")
	assert.Equal(t, map[string]any{"rate": 7.0}, state.stored["alpha"],
		"outgoing live config is captured before the swap")
}

func TestCategoryParameterSwitchBackRestoresParams(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)

	require.NoError(t, parameter.Set(ctx, state, map[string]any{
		"type":   "alpha",
		"config": map[string]any{"rate": 9.0},
	}))
	require.NoError(t, parameter.Set(ctx, state, map[string]any{"type": "beta"}))
	require.NoError(t, parameter.Set(ctx, state, map[string]any{"type": "alpha"}))

	assert.Equal(t, "alpha", state.tuner.Category())
	assert.Equal(t, 9.0, state.tuner.rate,
		"switching back restores the category's last parameters")
}

func TestCategoryParameterIncomingConfigWinsOverStored(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)
	state.stored["beta"] = map[string]any{"rate": 4.0}

	err := parameter.Set(ctx, state, map[string]any{
		"type":   "beta",
		"config": map[string]any{"rate": 6.0},
	})
	require.NoError(t, err)

	assert.Equal(t, 6.0, state.tuner.rate)
	assert.Equal(t, map[string]any{"rate": 6.0}, state.stored["beta"])
}

func TestCategoryParameterShortCircuits(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)
	active := state.tuner

	err := parameter.Set(ctx, state, map[string]any{
		"type":   "alpha",
		"config": map[string]any{"rate": 1},
	})
	require.NoError(t, err)

	assert.Same(t, active, state.tuner)
	assert.Zero(t, active.configures, "equal value should not reach Configure")
}

func TestCategoryParameterUnknownCategory(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)

	err := parameter.Set(ctx, state, map[string]any{"type": "gamma"})
	require.Error(t, err)

	var setErr *SetError
	require.True(t, stderrors.As(err, &setErr))

	var unknown *component.UnknownCategoryError
	require.True(t, stderrors.As(err, &unknown))
	assert.Equal(t, "tuner", unknown.Family)
	assert.Equal(t, "gamma", unknown.Category)

	assert.Equal(t, "alpha", state.tuner.Category(), "failed switch leaves the slot untouched")
}

func TestCategoryParameterConfigureFailureLeavesSlot(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)

	err := parameter.Set(ctx, state, map[string]any{
		"type":   "beta",
		"config": map[string]any{"rate": -1.0},
	})
	require.Error(t, err)

	assert.Equal(t, "alpha", state.tuner.Category())
	assert.False(t, state.tuner.closed)
	assert.Nil(t, state.stored["beta"], "failed configure must not update stored params")
}

func TestCategoryParameterMissingType(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)

	err := parameter.Set(ctx, state, map[string]any{
		"config": map[string]any{"rate": 2.0},
	})
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))
}

func TestCategoryParameterEvictedCloseFailure(t *testing.T) {
	ctx := context.Background()
	parameter, state := newTunerParameter(t)
	closeErr := fmt.Errorf("handle already released")
	state.tuner.closeErr = closeErr

	err := parameter.Set(ctx, state, map[string]any{"type": "beta"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, closeErr))
}

func TestCategoryParameterSchema(t *testing.T) {
	parameter, _ := newTunerParameter(t)

	schema, err := parameter.Schema()
	require.NoError(t, err)
	assert.Equal(t, "Tuner", schema["title"])

	variants, ok := schema["oneOf"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, variants, 2)

	// Categories come back sorted from the registry
	first := variants[0]["properties"].(map[string]any)
	assert.Equal(t, "alpha", first["type"].(map[string]any)["const"])
	second := variants[1]["properties"].(map[string]any)
	assert.Equal(t, "beta", second["type"].(map[string]any)["const"])
}

func TestPrettyName(t *testing.T) {
	assert.Equal(t, "Scorer", prettyName("scorer"))
	assert.Equal(t, "Score Modifier", prettyName("score_modifier"))
	assert.Equal(t, "", prettyName(""))
}

func TestMergeParams(t *testing.T) {
	stored := map[string]any{"a": 1, "b": 2}
	incoming := map[string]any{"b": 3, "c": 4}

	merged := mergeParams(stored, incoming)

	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, stored, "inputs must not be mutated")
	assert.Equal(t, map[string]any{"b": 3, "c": 4}, incoming)
}
