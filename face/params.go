package face

import (
	"fmt"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/modifier"
	"github.com/kilroybot/kilroy-face-twitter/param"
	"github.com/kilroybot/kilroy-face-twitter/restriction"
	"github.com/kilroybot/kilroy-face-twitter/scorer"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
)

// parameterOrder fixes the order parameters appear in configuration
// documents and schemas.
var parameterOrder = []string{"processor", "scorer", "scraper", "modifier", "restriction"}

// newParameters builds the face's parameter set against the catalog.
func newParameters(catalog *Catalog) map[string]param.Parameter[*State] {
	params := []param.Parameter[*State]{
		newProcessorParameter(),
		param.NewCategoryParameter("scorer", catalog.Scorers, param.CategoryAccess[*State, scorer.Scorer]{
			Active: func(s *State) scorer.Scorer { return s.Scorer },
			Swap: func(s *State, next scorer.Scorer) scorer.Scorer {
				evicted := s.Scorer
				s.Scorer = next
				return evicted
			},
			Stored: func(s *State) map[string]map[string]any { return s.ScorerParams },
		}),
		param.NewCategoryParameter("scraper", catalog.Scrapers, param.CategoryAccess[*State, scraper.Scraper]{
			Active: func(s *State) scraper.Scraper { return s.Scraper },
			Swap: func(s *State, next scraper.Scraper) scraper.Scraper {
				evicted := s.Scraper
				s.Scraper = next
				return evicted
			},
			Stored: func(s *State) map[string]map[string]any { return s.ScraperParams },
		}),
		param.NewOptionalCategoryParameter("modifier", catalog.Modifiers, modifier.DefaultCategory,
			param.OptionalAccess[*State, modifier.Modifier]{
				Enabled: func(s *State) bool { return s.Modifier != nil },
				Active:  func(s *State) modifier.Modifier { return s.Modifier },
				Swap: func(s *State, next modifier.Modifier) modifier.Modifier {
					evicted := s.Modifier
					s.Modifier = next
					return evicted
				},
				Stored: func(s *State) map[string]map[string]any { return s.ModifierParams },
			}),
		param.NewOptionalCategoryParameter("restriction", catalog.Restrictions, restriction.DefaultCategory,
			param.OptionalAccess[*State, restriction.Restriction]{
				Enabled: func(s *State) bool { return s.Restriction != nil },
				Active:  func(s *State) restriction.Restriction { return s.Restriction },
				Swap: func(s *State, next restriction.Restriction) restriction.Restriction {
					evicted := s.Restriction
					s.Restriction = next
					return evicted
				},
				Stored: func(s *State) map[string]map[string]any { return s.RestrictionParams },
			}),
	}

	byName := make(map[string]param.Parameter[*State], len(params))
	for _, p := range params {
		byName[p.Name()] = p
	}
	return byName
}

// newProcessorParameter exposes the fixed processor slot: the category
// is chosen at build time from the application configuration, so the
// parameter accepts configuration updates for the active shape but
// rejects attempts to switch it.
func newProcessorParameter() *param.Binding[*State] {
	schema := map[string]any{
		"title": "Processor",
		"type":  "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":  "string",
				"title": "Type",
			},
			"config": map[string]any{
				"type":  "object",
				"title": "Config",
			},
		},
	}

	get := func(s *State) (any, error) {
		return map[string]any{
			"type":   s.Processor.Category(),
			"config": s.Processor.Config(),
		}, nil
	}

	set := func(s *State, value any) error {
		doc, ok := value.(map[string]any)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: processor value must be an object", errors.ErrInvalidConfig),
				"Face", "SetConfig", "processor value decoding")
		}

		if target, ok := doc["type"].(string); ok && target != s.Processor.Category() {
			return errors.WrapInvalid(
				fmt.Errorf("%w: content shape is fixed at startup, cannot switch %q to %q",
					errors.ErrInvalidConfig, s.Processor.Category(), target),
				"Face", "SetConfig", "processor switch check")
		}

		config, _ := doc["config"].(map[string]any)
		return s.Processor.Configure(config)
	}

	return param.NewBinding("processor", schema, get, set)
}
