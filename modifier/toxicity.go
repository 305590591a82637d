package modifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// ToxicityConfig holds the tunable properties of the toxicity modifier.
type ToxicityConfig struct {
	Threshold float64 `json:"threshold" schema:"type:float,description:Toxicity level treated as neutral,min:0,max:1,default:0.8,category:basic"`
	Alpha     float64 `json:"alpha"     schema:"type:float,description:Steepness of the suppression curve,min:0,max:1,default:0.9,category:advanced"`
}

func (c ToxicityConfig) validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: threshold %v outside [0,1]", errors.ErrInvalidConfig, c.Threshold),
			"ToxicityModifier", "Configure", "threshold validation",
		)
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: alpha %v outside [0,1]", errors.ErrInvalidConfig, c.Alpha),
			"ToxicityModifier", "Configure", "alpha validation",
		)
	}
	return nil
}

var toxicitySchema = component.GenerateConfigSchema(reflect.TypeOf(ToxicityConfig{}))

// Toxicity multiplies scores by a curve of the post text's estimated
// toxicity: scores pass through unchanged around zero toxicity, fall off
// around the threshold, and approach zero for maximally toxic text.
type Toxicity struct {
	pool   *toxicity.Shared
	handle *toxicity.Handle

	mu        sync.RWMutex
	threshold float64
	alpha     float64
}

// NewToxicity acquires a handle on the shared estimator pool and returns
// a modifier with default parameters.
func NewToxicity(pool *toxicity.Shared) (*Toxicity, error) {
	handle, err := pool.Acquire()
	if err != nil {
		return nil, errors.Wrap(err, "ToxicityModifier", "NewToxicity", "estimator acquisition")
	}

	return &Toxicity{
		pool:      pool,
		handle:    handle,
		threshold: 0.8,
		alpha:     0.9,
	}, nil
}

// Category identifies the modifier.
func (m *Toxicity) Category() string { return "toxicity" }

// NeededFields declares the text field group.
func (m *Toxicity) NeededFields() twitter.Fields {
	return twitter.Fields{Tweets: []string{"text"}}
}

// Config returns the current parameters.
func (m *Toxicity) Config() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return component.ConfigMap(ToxicityConfig{Threshold: m.threshold, Alpha: m.alpha})
}

// Configure applies a partial parameter update.
func (m *Toxicity) Configure(params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := ToxicityConfig{Threshold: m.threshold, Alpha: m.alpha}
	if err := component.DecodeParams(params, &cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	m.threshold = cfg.Threshold
	m.alpha = cfg.Alpha
	return nil
}

// Schema describes the tunable properties.
func (m *Toxicity) Schema() component.ConfigSchema { return toxicitySchema }

// Modify estimates the toxicity of the tweet's text and rescales the
// score with the suppression curve.
func (m *Toxicity) Modify(ctx context.Context, tweet twitter.Tweet, includes twitter.Includes, score float64) (float64, error) {
	level, err := m.handle.Score(ctx, tweet.Text)
	if err != nil {
		return 0, errors.Wrap(err, "ToxicityModifier", "Modify", "toxicity estimation")
	}

	m.mu.RLock()
	threshold, alpha := m.threshold, m.alpha
	m.mu.RUnlock()

	return Curve(level, threshold, alpha) * score, nil
}

// SaveState serializes the tuned parameters.
func (m *Toxicity) SaveState() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return json.Marshal(ToxicityConfig{Threshold: m.threshold, Alpha: m.alpha})
}

// LoadState restores previously saved parameters.
func (m *Toxicity) LoadState(data []byte) error {
	var cfg ToxicityConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrStateCorrupted, err),
			"ToxicityModifier", "LoadState", "state decoding",
		)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = cfg.Threshold
	m.alpha = cfg.Alpha
	return nil
}

// Clone returns an independent modifier with the same parameters and its
// own handle on the shared pool.
func (m *Toxicity) Clone() (Modifier, error) {
	handle, err := m.pool.Acquire()
	if err != nil {
		return nil, errors.Wrap(err, "ToxicityModifier", "Clone", "estimator acquisition")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Toxicity{
		pool:      m.pool,
		handle:    handle,
		threshold: m.threshold,
		alpha:     m.alpha,
	}, nil
}

// Close releases the estimator handle.
func (m *Toxicity) Close(ctx context.Context) error {
	return m.handle.Release(ctx)
}

// Curve maps a toxicity level in [0,1] to a score multiplier in [0,1].
// The multiplier stays near 1 for levels well below the threshold,
// crosses 1/2 at the threshold, and drops toward 0 beyond it; alpha
// steers how sharp the transition is, with 1 a hard cutoff.
func Curve(x, threshold, alpha float64) float64 {
	x = clip(x)
	threshold = clip(threshold)
	alpha = clip(alpha)

	switch {
	case x == 0 || x == 1:
		return 1 - x
	case threshold == 0:
		return 0
	case threshold == 1:
		return 1
	case alpha == 1 && x == threshold:
		return 1
	}

	inner := -math.Ln2 / math.Log(threshold)
	outer := 1 / (1 - alpha)
	value := math.Pow(x, inner)
	return 1 / (1 + math.Pow(value/(1-value), outer))
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
