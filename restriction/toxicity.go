package restriction

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
)

// ToxicityConfig holds the tunable properties of the toxicity restriction.
type ToxicityConfig struct {
	Threshold float64 `json:"threshold" schema:"type:float,description:Toxicity level at which posts are rejected,min:0,max:1,default:0.8,category:basic"`
}

func (c ToxicityConfig) validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: threshold %v outside [0,1]", errors.ErrInvalidConfig, c.Threshold),
			"ToxicityRestriction", "Configure", "threshold validation",
		)
	}
	return nil
}

var toxicitySchema = component.GenerateConfigSchema(reflect.TypeOf(ToxicityConfig{}))

// Toxicity vetoes payloads whose text reaches the toxicity threshold.
// Payloads without text always pass.
type Toxicity struct {
	pool   *toxicity.Shared
	handle *toxicity.Handle

	mu        sync.RWMutex
	threshold float64
}

// NewToxicity acquires a handle on the shared estimator pool and returns
// a restriction with the default threshold.
func NewToxicity(pool *toxicity.Shared) (*Toxicity, error) {
	handle, err := pool.Acquire()
	if err != nil {
		return nil, errors.Wrap(err, "ToxicityRestriction", "NewToxicity", "estimator acquisition")
	}

	return &Toxicity{pool: pool, handle: handle, threshold: 0.8}, nil
}

// Category identifies the restriction.
func (r *Toxicity) Category() string { return "toxicity" }

// Config returns the current parameters.
func (r *Toxicity) Config() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return component.ConfigMap(ToxicityConfig{Threshold: r.threshold})
}

// Configure applies a partial parameter update.
func (r *Toxicity) Configure(params map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := ToxicityConfig{Threshold: r.threshold}
	if err := component.DecodeParams(params, &cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	r.threshold = cfg.Threshold
	return nil
}

// Schema describes the tunable properties.
func (r *Toxicity) Schema() component.ConfigSchema { return toxicitySchema }

// Check estimates the toxicity of the payload's text. Text-free payloads
// pass without touching the estimator.
func (r *Toxicity) Check(ctx context.Context, data post.Data) (bool, error) {
	if data.Text == nil {
		return true, nil
	}

	level, err := r.handle.Score(ctx, data.Text.Content)
	if err != nil {
		return false, errors.Wrap(err, "ToxicityRestriction", "Check", "toxicity estimation")
	}

	r.mu.RLock()
	threshold := r.threshold
	r.mu.RUnlock()

	return level < threshold, nil
}

// SaveState serializes the tuned parameters.
func (r *Toxicity) SaveState() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return json.Marshal(ToxicityConfig{Threshold: r.threshold})
}

// LoadState restores previously saved parameters.
func (r *Toxicity) LoadState(data []byte) error {
	var cfg ToxicityConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrStateCorrupted, err),
			"ToxicityRestriction", "LoadState", "state decoding",
		)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = cfg.Threshold
	return nil
}

// Clone returns an independent restriction with the same parameters and
// its own handle on the shared pool.
func (r *Toxicity) Clone() (Restriction, error) {
	handle, err := r.pool.Acquire()
	if err != nil {
		return nil, errors.Wrap(err, "ToxicityRestriction", "Clone", "estimator acquisition")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Toxicity{pool: r.pool, handle: handle, threshold: r.threshold}, nil
}

// Close releases the estimator handle.
func (r *Toxicity) Close(ctx context.Context) error {
	return r.handle.Release(ctx)
}
