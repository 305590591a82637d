// Package modifier defines score modifiers: optional components that
// rescale a post's base score using signals beyond the scorer's metric.
package modifier

import (
	"context"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// DefaultCategory is the modifier used when one is enabled without a
// category.
const DefaultCategory = "toxicity"

// Modifier rescales a base score. Implementations must be safe for
// concurrent use.
type Modifier interface {
	component.Identifiable
	component.Configurable
	component.Closer

	// NeededFields declares the tweet fields Modify reads. They join the
	// field union of every fetch whose result will be modified.
	NeededFields() twitter.Fields

	// Modify returns the adjusted score for the tweet.
	Modify(ctx context.Context, tweet twitter.Tweet, includes twitter.Includes, score float64) (float64, error)
}

// NewRegistry returns a registry with every modifier registered. The
// toxicity pool is shared with whoever else estimates toxicity in the
// same process.
func NewRegistry(pool *toxicity.Shared) *component.Registry[Modifier] {
	r := component.NewRegistry[Modifier]("modifier")
	r.MustRegister("toxicity", func() (Modifier, error) { return NewToxicity(pool) })
	return r
}
