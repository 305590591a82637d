// Package restriction defines publish-time vetoes: optional components
// that inspect an outgoing payload and may reject it before anything
// reaches the network.
package restriction

import (
	"context"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
)

// DefaultCategory is the restriction used when one is enabled without a
// category.
const DefaultCategory = "toxicity"

// Restriction decides whether a payload may be published. Implementations
// must be safe for concurrent use.
type Restriction interface {
	component.Identifiable
	component.Configurable
	component.Closer

	// Check reports whether the payload passes. A false result is a veto,
	// not an error; errors mean the check itself could not run.
	Check(ctx context.Context, data post.Data) (bool, error)
}

// NewRegistry returns a registry with every restriction registered. The
// toxicity pool is shared with whoever else estimates toxicity in the
// same process.
func NewRegistry(pool *toxicity.Shared) *component.Registry[Restriction] {
	r := component.NewRegistry[Restriction]("restriction")
	r.MustRegister("toxicity", func() (Restriction, error) { return NewToxicity(pool) })
	return r
}
