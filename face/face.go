// Package face hosts the pluggable Twitter face: it composes the
// hot-swap state container with the component catalog and exposes the
// domain operations (post, score, scrap) and the configuration surface
// (get/set/watch) the protocol layer serves to callers.
package face

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/metric"
	"github.com/kilroybot/kilroy-face-twitter/param"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/processor"
	"github.com/kilroybot/kilroy-face-twitter/scraper"
	"github.com/kilroybot/kilroy-face-twitter/state"
	"github.com/kilroybot/kilroy-face-twitter/statestore"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// ErrPostRejected is returned by Post when the active restriction vetoes
// the payload. Nothing reaches the network in that case.
var ErrPostRejected = stderrors.New("post rejected by restriction")

// InvalidConfigError reports which parameter made a bulk configuration
// update fail. The whole update is rolled back; the previous snapshot
// stays current.
type InvalidConfigError struct {
	Parameter string
	Cause     error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for parameter %q: %v", e.Parameter, e.Cause)
}

func (e *InvalidConfigError) Unwrap() error { return e.Cause }

// ScrapItem is one emitted record of the streaming scrap pipeline.
type ScrapItem struct {
	ID      uuid.UUID `json:"id"`
	Content post.Data `json:"content"`
	Score   float64   `json:"score"`
}

// Face is the runtime host. All operations read the current snapshot
// through the container's read path and fail fast with state.ErrNotReady
// while a reconfiguration is in flight.
type Face struct {
	client  twitter.Client
	catalog *Catalog
	store   *statestore.Store

	container *state.Container[*State]
	params    map[string]param.Parameter[*State]

	processorCategory string

	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Face.
type Option func(*Face)

// WithLogger sets the logger for operation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Face) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics attaches operation metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(f *Face) {
		f.metrics = m
	}
}

// WithStore enables on-disk state persistence.
func WithStore(store *statestore.Store) Option {
	return func(f *Face) {
		f.store = store
	}
}

// WithProcessorCategory selects the content shape the face is built for.
// The shape is fixed for the process lifetime; only its nested
// configuration can change at runtime.
func WithProcessorCategory(category string) Option {
	return func(f *Face) {
		if category != "" {
			f.processorCategory = category
		}
	}
}

// New creates a face around the shared client and catalog. The face is
// not ready until Init publishes the first snapshot.
func New(client twitter.Client, catalog *Catalog, opts ...Option) *Face {
	f := &Face{
		client:            client,
		catalog:           catalog,
		processorCategory: processor.DefaultCategory,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "face")

	f.params = newParameters(catalog)
	f.container = state.NewContainer(
		state.WithLogger[*State](f.logger),
		state.WithMetrics[*State](f.metrics),
		state.WithConfigFunc[*State](f.renderConfig),
	)

	return f
}

// Init builds and publishes the first snapshot. With a store attached it
// restores the persisted state; a missing or corrupt descriptor falls
// back to defaults, while a descriptor naming an unregistered category
// fails the whole build and leaves the face not ready.
func (f *Face) Init(ctx context.Context) error {
	_, err := f.container.Replace(ctx, f.buildState)
	return err
}

// Close retires the current snapshot and ends the watch streams. State
// is not saved here; callers decide whether to call SaveState first.
func (f *Face) Close() {
	f.container.Close()
}

// Ready reports whether operations are currently permitted.
func (f *Face) Ready() bool {
	return f.container.Ready()
}

// WatchReady subscribes to readiness transitions.
func (f *Face) WatchReady() *state.Subscription[bool] {
	return f.container.WatchReady()
}

// WatchConfig subscribes to configuration changes, one (old, new) pair
// per successful update.
func (f *Face) WatchConfig() *state.Subscription[state.ConfigChange] {
	return f.container.WatchConfig()
}

// Post publishes a payload. The active restriction, when one is
// enabled, is consulted first: a veto fails with ErrPostRejected before
// any network side effect. On success the returned record carries the
// post's opaque id and public URL.
func (f *Face) Post(ctx context.Context, data post.Data) (post.Post, error) {
	start := time.Now()

	var published post.Post
	err := f.container.View(func(s *State) error {
		if s.Restriction != nil {
			ok, err := s.Restriction.Check(ctx, data)
			if err != nil {
				return errors.Wrap(err, "Face", "Post", "restriction check")
			}
			if f.metrics != nil {
				outcome := "passed"
				if !ok {
					outcome = "rejected"
				}
				f.metrics.RecordToxicityCheck(outcome)
			}
			if !ok {
				return errors.WrapInvalid(ErrPostRejected, "Face", "Post", "restriction check")
			}
		}

		var err error
		published, err = s.Poster.Post(ctx, s.Client, s.Processor, data)
		return err
	})

	f.recordOperation("post", err, start)
	if err != nil {
		return post.Post{}, err
	}
	if f.metrics != nil {
		f.metrics.RecordPostCreated()
	}
	f.logger.Info("post published", "id", published.ID, "url", published.URL)
	return published, nil
}

// Score fetches the post behind id once, carrying the union of the
// scorer's and the enabled modifier's field requirements, and returns
// the base score with the modifier applied multiplicatively.
func (f *Face) Score(ctx context.Context, id uuid.UUID) (float64, error) {
	start := time.Now()

	tweetID, err := twitter.DecodePostID(id)
	if err != nil {
		f.recordOperation("score", err, start)
		return 0, errors.WrapInvalid(err, "Face", "Score", "post id decoding")
	}

	var score float64
	err = f.container.View(func(s *State) error {
		fields := s.Scorer.NeededFields()
		if s.Modifier != nil {
			fields = fields.Union(s.Modifier.NeededFields())
		}

		tweet, includes, err := s.Client.GetTweet(ctx, tweetID, fields)
		if err != nil {
			return errors.Wrap(err, "Face", "Score", "tweet fetch")
		}

		score, err = s.Scorer.Score(ctx, s.Client, tweet, includes)
		if err != nil {
			return err
		}

		if s.Modifier != nil {
			score, err = s.Modifier.Modify(ctx, tweet, includes, score)
		}
		return err
	})

	f.recordOperation("score", err, start)
	if err != nil {
		return 0, err
	}
	return score, nil
}

// Scrap walks historical posts through the active scraper and hands each
// convertible item to emit as (id, content, score). Items the active
// shape cannot parse, or that cannot be scored, are skipped; a fetch
// failure aborts the walk. limit > 0 stops the walk after that many
// emitted items, fetching no further page once it is reached. A non-nil
// error from emit ends the walk and is returned verbatim.
func (f *Face) Scrap(ctx context.Context, limit int, window scraper.Window, emit func(ScrapItem) error) error {
	start := time.Now()

	var emitErr error
	err := f.container.View(func(s *State) error {
		fields := s.Processor.NeededFields().Union(s.Scorer.NeededFields())
		if s.Modifier != nil {
			fields = fields.Union(s.Modifier.NeededFields())
		}

		emitted := 0
		return s.Scraper.Scrap(ctx, s.Client, fields, window, func(tweet twitter.Tweet, includes twitter.Includes) bool {
			item, ok := f.scrapItem(ctx, s, tweet, includes)
			if !ok {
				return true
			}

			if err := emit(item); err != nil {
				emitErr = err
				return false
			}
			if f.metrics != nil {
				f.metrics.RecordScrapItem("emitted")
			}

			emitted++
			return limit <= 0 || emitted < limit
		})
	})

	if err == nil {
		err = emitErr
	}
	f.recordOperation("scrap", err, start)
	return err
}

// scrapItem converts and scores one fetched tweet. Failures are the
// pipeline's per-item skip case: logged, counted, never fatal.
func (f *Face) scrapItem(ctx context.Context, s *State, tweet twitter.Tweet, includes twitter.Includes) (ScrapItem, bool) {
	data, err := s.Processor.Convert(ctx, s.Client, tweet, includes)
	if err != nil {
		f.skipItem(tweet.ID, "conversion", err)
		return ScrapItem{}, false
	}

	score, err := s.Scorer.Score(ctx, s.Client, tweet, includes)
	if err != nil {
		f.skipItem(tweet.ID, "scoring", err)
		return ScrapItem{}, false
	}
	if s.Modifier != nil {
		score, err = s.Modifier.Modify(ctx, tweet, includes, score)
		if err != nil {
			f.skipItem(tweet.ID, "modification", err)
			return ScrapItem{}, false
		}
	}

	return ScrapItem{
		ID:      twitter.EncodePostID(tweet.ID),
		Content: data,
		Score:   score,
	}, true
}

func (f *Face) skipItem(tweetID int64, stage string, err error) {
	f.logger.Debug("scrap item skipped", "tweet_id", tweetID, "stage", stage, "error", err)
	if f.metrics != nil {
		f.metrics.RecordScrapItem("skipped")
	}
}

// GetConfig renders the current logical configuration.
func (f *Face) GetConfig(ctx context.Context) (map[string]any, error) {
	var config map[string]any
	err := f.container.View(func(s *State) error {
		var err error
		config, err = f.stateConfig(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return config, nil
}

// SetConfig applies a bulk configuration update through one staged
// reconfiguration. Any unknown key or failing parameter aborts the
// whole update with an InvalidConfigError and leaves the previous
// configuration current. The returned document is the configuration
// after the update.
func (f *Face) SetConfig(ctx context.Context, values map[string]any) (map[string]any, error) {
	start := time.Now()

	staged, err := f.container.Reconfigure(ctx, func(ctx context.Context, s *State) error {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p, ok := f.params[name]
			if !ok {
				return &InvalidConfigError{
					Parameter: name,
					Cause:     fmt.Errorf("%w: unknown parameter", errors.ErrInvalidConfig),
				}
			}
			if err := p.Set(ctx, s, values[name]); err != nil {
				return &InvalidConfigError{Parameter: name, Cause: err}
			}
		}
		return nil
	})

	f.recordOperation("set_config", err, start)
	if err != nil {
		return nil, err
	}
	return f.stateConfig(ctx, staged)
}

// ConfigSchema describes the whole configuration document, one property
// per parameter.
func (f *Face) ConfigSchema() (map[string]any, error) {
	properties := make(map[string]any, len(f.params))
	for _, name := range parameterOrder {
		p, ok := f.params[name]
		if !ok {
			continue
		}
		schema, err := p.Schema()
		if err != nil {
			return nil, err
		}
		properties[name] = schema
	}

	return map[string]any{
		"title":      "Face configuration",
		"type":       "object",
		"properties": properties,
	}, nil
}

// PostSchema describes the payload the active content shape accepts.
func (f *Face) PostSchema() (component.ConfigSchema, error) {
	var schema component.ConfigSchema
	err := f.container.View(func(s *State) error {
		schema = s.Processor.PostSchema()
		return nil
	})
	return schema, err
}

// stateConfig renders a snapshot's configuration document through the
// parameter set.
func (f *Face) stateConfig(ctx context.Context, s *State) (map[string]any, error) {
	config := make(map[string]any, len(f.params))
	for name, p := range f.params {
		value, err := p.Get(ctx, s)
		if err != nil {
			return nil, err
		}
		config[name] = value
	}
	return config, nil
}

// renderConfig is the container's config extractor for change
// notifications. Parameter reads cannot fail for a fully built
// snapshot; an unexpected failure yields a partial document rather than
// suppressing the notification.
func (f *Face) renderConfig(s *State) map[string]any {
	ctx := context.Background()
	config := make(map[string]any, len(f.params))
	for name, p := range f.params {
		value, err := p.Get(ctx, s)
		if err != nil {
			f.logger.Warn("config rendering failed for parameter", "parameter", name, "error", err)
			continue
		}
		config[name] = value
	}
	return config
}

func (f *Face) recordOperation(operation string, err error, start time.Time) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	f.metrics.RecordOperation(operation, status, time.Since(start))
}
