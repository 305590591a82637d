package face

import (
	"context"
	"fmt"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/modifier"
	"github.com/kilroybot/kilroy-face-twitter/param"
	"github.com/kilroybot/kilroy-face-twitter/poster"
	"github.com/kilroybot/kilroy-face-twitter/restriction"
	"github.com/kilroybot/kilroy-face-twitter/scorer"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
	"github.com/kilroybot/kilroy-face-twitter/statestore"
)

// buildState constructs the snapshot Init publishes: the persisted
// state when a store holds a usable descriptor, defaults otherwise.
func (f *Face) buildState(ctx context.Context) (*State, error) {
	if f.store != nil {
		descriptor, ok, err := f.store.LoadDescriptor()
		if err != nil {
			return nil, err
		}
		if ok {
			return f.buildFromDescriptor(ctx, descriptor)
		}
		f.logger.Info("no usable persisted state, building defaults")
	}

	return f.buildDefault()
}

// buildDefault assembles a snapshot from each family's default category.
func (f *Face) buildDefault() (*State, error) {
	proc, err := f.catalog.Processors.Build(f.processorCategory)
	if err != nil {
		return nil, err
	}
	pstr, err := f.catalog.Posters.Build(poster.DefaultCategory)
	if err != nil {
		return nil, err
	}
	scr, err := f.catalog.Scorers.Build(scorer.DefaultCategory)
	if err != nil {
		return nil, err
	}
	scp, err := f.catalog.Scrapers.Build(scraper.DefaultCategory)
	if err != nil {
		return nil, err
	}

	return &State{
		Client:            f.client,
		Processor:         proc,
		Poster:            pstr,
		Scorer:            scr,
		ScorerParams:      map[string]map[string]any{},
		Scraper:           scp,
		ScraperParams:     map[string]map[string]any{},
		ModifierParams:    map[string]map[string]any{},
		RestrictionParams: map[string]map[string]any{},
	}, nil
}

// buildFromDescriptor assembles a snapshot from persisted state. An
// unregistered category anywhere fails the whole build; the face never
// starts on a partially restored snapshot. Components already built
// when a later step fails are released before the error propagates.
func (f *Face) buildFromDescriptor(ctx context.Context, d statestore.Descriptor) (*State, error) {
	s, err := f.buildDefault()
	if err != nil {
		return nil, err
	}

	if d.Processor != "" && d.Processor != s.Processor.Category() {
		proc, err := f.catalog.Processors.Build(d.Processor)
		if err != nil {
			s.Dispose()
			return nil, err
		}
		s.Processor = proc
	}

	if err := restoreSlot(ctx, f.catalog.Scorers, d.Scorer,
		func(c scorer.Scorer) { _ = s.Scorer.Close(ctx); s.Scorer = c },
		func(m map[string]map[string]any) { s.ScorerParams = m },
	); err != nil {
		s.Dispose()
		return nil, err
	}

	if err := restoreSlot(ctx, f.catalog.Scrapers, d.Scraper,
		func(c scraper.Scraper) { _ = s.Scraper.Close(ctx); s.Scraper = c },
		func(m map[string]map[string]any) { s.ScraperParams = m },
	); err != nil {
		s.Dispose()
		return nil, err
	}

	if err := restoreOptionalSlot(ctx, f.catalog.Modifiers, d.Modifier,
		func(c modifier.Modifier) { s.Modifier = c },
		func(m map[string]map[string]any) { s.ModifierParams = m },
	); err != nil {
		s.Dispose()
		return nil, err
	}
	if s.Modifier != nil {
		if err := f.store.LoadComponent("modifier", s.Modifier); err != nil {
			s.Dispose()
			return nil, err
		}
	}

	if err := restoreOptionalSlot(ctx, f.catalog.Restrictions, d.Restriction,
		func(c restriction.Restriction) { s.Restriction = c },
		func(m map[string]map[string]any) { s.RestrictionParams = m },
	); err != nil {
		s.Dispose()
		return nil, err
	}
	if s.Restriction != nil {
		if err := f.store.LoadComponent("restriction", s.Restriction); err != nil {
			s.Dispose()
			return nil, err
		}
	}

	f.logger.Info("persisted state restored",
		"processor", s.Processor.Category(),
		"scorer", s.Scorer.Category(),
		"scraper", s.Scraper.Category())
	return s, nil
}

// restoreSlot rebuilds one required slot from its persisted record. An
// empty record keeps the default.
func restoreSlot[C param.Slot](
	ctx context.Context,
	registry *component.Registry[C],
	slot statestore.Slot,
	install func(C),
	installParams func(map[string]map[string]any),
) error {
	if slot.Params != nil {
		installParams(copyParams(slot.Params))
	}
	if slot.Type == "" {
		return nil
	}

	instance, err := registry.Build(slot.Type)
	if err != nil {
		return err
	}
	if err := instance.Configure(slot.Params[slot.Type]); err != nil {
		_ = instance.Close(ctx)
		return errors.Wrap(err, "Face", "buildFromDescriptor",
			fmt.Sprintf("%s %q restoration", registry.Family(), slot.Type))
	}

	install(instance)
	return nil
}

// restoreOptionalSlot rebuilds one optional slot. Disabled slots keep
// their parameter memory so a later enable restores it.
func restoreOptionalSlot[C param.Slot](
	ctx context.Context,
	registry *component.Registry[C],
	slot statestore.OptionalSlot,
	install func(C),
	installParams func(map[string]map[string]any),
) error {
	if slot.Params != nil {
		installParams(copyParams(slot.Params))
	}
	if !slot.Enabled {
		// Disabled is valid; still fail on a name no registry knows so a
		// typo in persisted state cannot silently drop the slot.
		if slot.Type != "" && !registry.Has(slot.Type) {
			_, err := registry.Build(slot.Type)
			return err
		}
		return nil
	}

	category := slot.Type
	if category == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: enabled %s slot names no category", errors.ErrInvalidConfig, registry.Family()),
			"Face", "buildFromDescriptor", "descriptor validation")
	}

	instance, err := registry.Build(category)
	if err != nil {
		return err
	}
	if err := instance.Configure(slot.Params[category]); err != nil {
		_ = instance.Close(ctx)
		return errors.Wrap(err, "Face", "buildFromDescriptor",
			fmt.Sprintf("%s %q restoration", registry.Family(), category))
	}

	install(instance)
	return nil
}

// SaveState persists the current snapshot through the attached store.
// Live component configuration is captured into the per-category maps
// first, so what lands on disk is what switching back would restore.
func (f *Face) SaveState(ctx context.Context) error {
	if f.store == nil {
		return nil
	}

	return f.container.View(func(s *State) error {
		descriptor := descriptorFrom(s)
		if err := f.store.SaveDescriptor(descriptor); err != nil {
			return err
		}

		if s.Modifier != nil {
			if err := f.store.SaveComponent("modifier", s.Modifier); err != nil {
				return err
			}
		}
		if s.Restriction != nil {
			if err := f.store.SaveComponent("restriction", s.Restriction); err != nil {
				return err
			}
		}

		f.logger.Info("state saved", "dir", f.store.Dir())
		return nil
	})
}

// descriptorFrom renders a snapshot as its persisted descriptor.
func descriptorFrom(s *State) statestore.Descriptor {
	return statestore.Descriptor{
		Processor:   s.Processor.Category(),
		Scorer:      capturedSlot(s.Scorer, s.ScorerParams),
		Scraper:     capturedSlot(s.Scraper, s.ScraperParams),
		Modifier:    capturedOptionalSlot(s.Modifier, s.ModifierParams),
		Restriction: capturedOptionalSlot(s.Restriction, s.RestrictionParams),
	}
}

func capturedSlot[C param.Slot](active C, stored map[string]map[string]any) statestore.Slot {
	params := copyParams(stored)
	params[active.Category()] = active.Config()
	return statestore.Slot{Type: active.Category(), Params: params}
}

func capturedOptionalSlot[C param.Slot](active C, stored map[string]map[string]any) statestore.OptionalSlot {
	params := copyParams(stored)

	if any(active) == nil {
		return statestore.OptionalSlot{Enabled: false, Params: params}
	}

	params[active.Category()] = active.Config()
	return statestore.OptionalSlot{
		Enabled: true,
		Type:    active.Category(),
		Params:  params,
	}
}
