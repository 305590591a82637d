package face

import (
	"context"

	"github.com/kilroybot/kilroy-face-twitter/modifier"
	"github.com/kilroybot/kilroy-face-twitter/poster"
	"github.com/kilroybot/kilroy-face-twitter/processor"
	"github.com/kilroybot/kilroy-face-twitter/restriction"
	"github.com/kilroybot/kilroy-face-twitter/scorer"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// State is the face's composite snapshot: the active component per slot,
// the per-category parameter memory of the switchable slots, and the
// shared network client. A published State is never mutated; mutation
// happens on clones staged by the container during reconfiguration.
type State struct {
	// Client is shared by reference across reconfigurations. It is never
	// rebuilt by a swap; ownership transfers with the snapshot.
	Client twitter.Client

	// Processor and Poster are fixed at build time; only the processor's
	// nested configuration is runtime-tunable.
	Processor processor.Processor
	Poster    poster.Poster

	Scorer       scorer.Scorer
	ScorerParams map[string]map[string]any

	Scraper       scraper.Scraper
	ScraperParams map[string]map[string]any

	// Modifier and Restriction are optional; nil means disabled.
	Modifier       modifier.Modifier
	ModifierParams map[string]map[string]any

	Restriction       restriction.Restriction
	RestrictionParams map[string]map[string]any
}

// Clone produces the staging copy handed to reconfiguration mutators.
// Parameter maps are deep-copied. Component slots clone per their own
// semantics: components exposing a Clone method get fresh instances
// (the toxicity components re-acquire their estimator handle), stateless
// ones are shared. The client is carried over by reference.
func (s *State) Clone() (*State, error) {
	clone := &State{
		Client:            s.Client,
		Processor:         s.Processor,
		Poster:            s.Poster,
		Scorer:            cloneSlot[scorer.Scorer](s.Scorer),
		ScorerParams:      copyParams(s.ScorerParams),
		Scraper:           cloneSlot[scraper.Scraper](s.Scraper),
		ScraperParams:     copyParams(s.ScraperParams),
		ModifierParams:    copyParams(s.ModifierParams),
		RestrictionParams: copyParams(s.RestrictionParams),
	}

	if s.Modifier != nil {
		m, err := cloneSlotErr[modifier.Modifier](s.Modifier)
		if err != nil {
			return nil, err
		}
		clone.Modifier = m
	}
	if s.Restriction != nil {
		r, err := cloneSlotErr[restriction.Restriction](s.Restriction)
		if err != nil {
			return nil, err
		}
		clone.Restriction = r
	}

	return clone, nil
}

// Dispose releases the snapshot's owned resources. Shared stateless
// components close as no-ops; the toxicity components return their
// estimator handles, and the last holder tears the estimator down.
func (s *State) Dispose() {
	ctx := context.Background()
	_ = s.Scorer.Close(ctx)
	_ = s.Scraper.Close(ctx)
	if s.Modifier != nil {
		_ = s.Modifier.Close(ctx)
	}
	if s.Restriction != nil {
		_ = s.Restriction.Close(ctx)
	}
}

// cloner is implemented by components that own per-instance resources
// and must produce an independent copy for a staged snapshot.
type cloner[C any] interface {
	Clone() (C, error)
}

// cloneSlot copies a slot whose clone cannot fail in practice; a failing
// cloner falls back to sharing, which is safe for the stateless
// components this path serves.
func cloneSlot[C any](c C) C {
	if cl, ok := any(c).(cloner[C]); ok {
		if copied, err := cl.Clone(); err == nil {
			return copied
		}
	}
	return c
}

func cloneSlotErr[C any](c C) (C, error) {
	if cl, ok := any(c).(cloner[C]); ok {
		return cl.Clone()
	}
	return c, nil
}

func copyParams(params map[string]map[string]any) map[string]map[string]any {
	copied := make(map[string]map[string]any, len(params))
	for category, values := range params {
		inner := make(map[string]any, len(values))
		for k, v := range values {
			inner[k] = v
		}
		copied[category] = inner
	}
	return copied
}
