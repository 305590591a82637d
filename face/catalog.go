package face

import (
	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/modifier"
	"github.com/kilroybot/kilroy-face-twitter/poster"
	"github.com/kilroybot/kilroy-face-twitter/processor"
	"github.com/kilroybot/kilroy-face-twitter/restriction"
	"github.com/kilroybot/kilroy-face-twitter/scorer"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
)

// Catalog holds the component registries the face builds from. All
// registration happens here, once, at process start; nothing registers
// at runtime.
type Catalog struct {
	Processors   *component.Registry[processor.Processor]
	Scorers      *component.Registry[scorer.Scorer]
	Scrapers     *component.Registry[scraper.Scraper]
	Posters      *component.Registry[poster.Poster]
	Modifiers    *component.Registry[modifier.Modifier]
	Restrictions *component.Registry[restriction.Restriction]
}

// NewCatalog wires every known component family. The toxicity pool is
// shared between the modifier and restriction builders so both gate on
// one estimator instance.
func NewCatalog(pool *toxicity.Shared) *Catalog {
	return &Catalog{
		Processors:   processor.NewRegistry(),
		Scorers:      scorer.NewRegistry(),
		Scrapers:     scraper.NewRegistry(),
		Posters:      poster.NewRegistry(),
		Modifiers:    modifier.NewRegistry(pool),
		Restrictions: restriction.NewRegistry(pool),
	}
}
