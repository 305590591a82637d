package state

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/metric"
)

// ErrNotReady is returned by read accessors while a snapshot swap is in
// progress. The container never queues readers; callers retry or fail
// fast at their own policy.
var ErrNotReady = stderrors.New("state is not ready")

// Snapshot constrains the composite state types a Container can host.
//
// Clone returns a staging copy a mutator may change freely: mutable
// fields are copied, reference-counted resources re-acquired, and
// plainly shared handles such as the network client carried over by
// reference. A clone failure aborts the swap before the mutator runs.
// Dispose releases whatever the snapshot owns; the container calls it
// exactly once per snapshot, after the last reader lets go.
type Snapshot[S any] interface {
	Clone() (S, error)
	Dispose()
}

// ConfigChange carries the logical configuration before and after a
// successful snapshot swap.
type ConfigChange struct {
	Old map[string]any `json:"old"`
	New map[string]any `json:"new"`
}

// holder pairs a published snapshot with the count of readers still
// holding it. A holder is disposed when it has been retired and its
// reference count reaches zero, whichever side observes that last.
type holder[S Snapshot[S]] struct {
	state   S
	refs    atomic.Int64
	retired atomic.Bool
	dispose sync.Once
}

func (h *holder[S]) tryDispose() {
	h.dispose.Do(func() {
		h.state.Dispose()
	})
}

// release drops one reader reference.
func (h *holder[S]) release() {
	if h.refs.Add(-1) == 0 && h.retired.Load() {
		h.tryDispose()
	}
}

// retire marks the holder superseded. New references are impossible by
// now: the container swapped the current pointer before calling retire.
func (h *holder[S]) retire() {
	h.retired.Store(true)
	if h.refs.Load() == 0 {
		h.tryDispose()
	}
}

// Container owns the current composite-state snapshot and coordinates
// many readers with a single writer. Reads acquire a handle on the
// published snapshot and never block each other; writes stage a copy,
// mutate it, and swap it in atomically, with readiness dropped for the
// duration. The container starts in the loading state with no snapshot;
// Replace publishes the first one.
type Container[S Snapshot[S]] struct {
	configOf func(S) map[string]any
	logger   *slog.Logger
	metrics  *metric.Metrics

	writeMu sync.Mutex // serializes Replace and Reconfigure end to end

	current *holder[S]
	mu      sync.Mutex // guards current during acquire and swap

	ready        atomic.Bool
	readyEvents  *Stream[bool]
	configEvents *Stream[ConfigChange]

	generation atomic.Int64
	closed     atomic.Bool
}

// Option configures a Container.
type Option[S Snapshot[S]] func(*Container[S])

// WithLogger sets the logger for swap lifecycle events.
func WithLogger[S Snapshot[S]](logger *slog.Logger) Option[S] {
	return func(c *Container[S]) {
		c.logger = logger
	}
}

// WithMetrics attaches platform metrics. A nil registry disables
// recording.
func WithMetrics[S Snapshot[S]](m *metric.Metrics) Option[S] {
	return func(c *Container[S]) {
		c.metrics = m
	}
}

// WithConfigFunc sets the extractor that renders a snapshot's logical
// configuration for change notifications. Without it, config change
// events carry nil maps.
func WithConfigFunc[S Snapshot[S]](fn func(S) map[string]any) Option[S] {
	return func(c *Container[S]) {
		c.configOf = fn
	}
}

// NewContainer creates a container in the loading state.
func NewContainer[S Snapshot[S]](opts ...Option[S]) *Container[S] {
	c := &Container[S]{
		readyEvents:  NewStream[bool](),
		configEvents: NewStream[ConfigChange](),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "state-container")

	return c
}

// Ready reports whether reads are currently permitted.
func (c *Container[S]) Ready() bool {
	return c.ready.Load()
}

// Generation counts successful snapshot swaps since startup.
func (c *Container[S]) Generation() int64 {
	return c.generation.Load()
}

// Read acquires the current snapshot. The returned release function
// must be called when the caller is done; the snapshot stays valid
// until then even if a swap supersedes it meanwhile. Read fails fast
// with ErrNotReady while a swap is in progress.
func (c *Container[S]) Read() (S, func(), error) {
	var zero S
	if !c.ready.Load() {
		return zero, nil, ErrNotReady
	}

	c.mu.Lock()
	h := c.current
	if h == nil {
		c.mu.Unlock()
		return zero, nil, ErrNotReady
	}
	h.refs.Add(1)
	c.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(h.release)
	}

	return h.state, release, nil
}

// View runs fn against the current snapshot under a read handle.
func (c *Container[S]) View(fn func(S) error) error {
	s, release, err := c.Read()
	if err != nil {
		return err
	}
	defer release()

	return fn(s)
}

// Reconfigure stages a deep copy of the current snapshot, hands it to
// mutator, and publishes it as the new current snapshot when the
// mutator succeeds. At most one Reconfigure or Replace runs at a time.
// On mutator failure the staged copy is discarded and the previous
// snapshot remains current; readers never observe partial mutations.
//
// Readiness drops for the duration of the swap: one false and one true
// readiness event bracket it, and a config change event follows a
// successful swap.
func (c *Container[S]) Reconfigure(ctx context.Context, mutator func(context.Context, S) error) (S, error) {
	var zero S
	if mutator == nil {
		return zero, errors.WrapInvalid(errors.ErrInvalidConfig, "Container", "Reconfigure", "mutator validation")
	}
	if c.closed.Load() {
		return zero, errors.WrapInvalid(errors.ErrShuttingDown, "Container", "Reconfigure", "lifecycle check")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h == nil {
		return zero, errors.WrapInvalid(errors.ErrNotStarted, "Container", "Reconfigure", "snapshot availability")
	}

	start := time.Now()
	oldConfig := c.snapshotConfig(h.state)

	c.setReady(false)
	staged, err := h.state.Clone()
	if err != nil {
		c.setReady(true)
		c.recordSwap("reconfigure", "rolled_back", start)
		c.logger.Warn("staging copy failed", "error", err)
		return zero, err
	}

	if err := mutator(ctx, staged); err != nil {
		staged.Dispose()
		c.setReady(true)
		c.recordSwap("reconfigure", "rolled_back", start)
		c.logger.Warn("reconfiguration rolled back", "error", err)
		return zero, err
	}

	c.swapIn(staged)
	c.generation.Add(1)
	c.setReady(true)
	c.configEvents.Publish(ConfigChange{Old: oldConfig, New: c.snapshotConfig(staged)})
	c.recordSwap("reconfigure", "ok", start)
	c.logger.Info("snapshot published",
		"operation", "reconfigure",
		"generation", c.generation.Load(),
		"duration", time.Since(start))

	return staged, nil
}

// Replace builds a snapshot from scratch and publishes it, superseding
// any current one. It serves the initial build and snapshot loads,
// where staging starts from defaults or disk rather than a copy of the
// current state. Swap mechanics and event ordering match Reconfigure;
// on build failure any previous snapshot remains current, and a failed
// first build leaves the container loading.
func (c *Container[S]) Replace(ctx context.Context, build func(context.Context) (S, error)) (S, error) {
	var zero S
	if build == nil {
		return zero, errors.WrapInvalid(errors.ErrInvalidConfig, "Container", "Replace", "builder validation")
	}
	if c.closed.Load() {
		return zero, errors.WrapInvalid(errors.ErrShuttingDown, "Container", "Replace", "lifecycle check")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	h := c.current
	c.mu.Unlock()

	var oldConfig map[string]any
	if h != nil {
		oldConfig = c.snapshotConfig(h.state)
	}

	start := time.Now()
	c.setReady(false)

	staged, err := build(ctx)
	if err != nil {
		c.setReady(h != nil)
		c.recordSwap("replace", "rolled_back", start)
		c.logger.Warn("snapshot build failed", "error", err)
		return zero, err
	}

	c.swapIn(staged)
	c.generation.Add(1)
	c.setReady(true)
	if h != nil {
		c.configEvents.Publish(ConfigChange{Old: oldConfig, New: c.snapshotConfig(staged)})
	}
	c.recordSwap("replace", "ok", start)
	c.logger.Info("snapshot published",
		"operation", "replace",
		"generation", c.generation.Load(),
		"duration", time.Since(start))

	return staged, nil
}

// WatchReady subscribes to readiness transitions. The subscription
// receives every transition from this point forward, in order.
func (c *Container[S]) WatchReady() *Subscription[bool] {
	return c.readyEvents.Subscribe()
}

// WatchConfig subscribes to configuration change events, one (old, new)
// pair per successful swap.
func (c *Container[S]) WatchConfig() *Subscription[ConfigChange] {
	return c.configEvents.Subscribe()
}

// Close retires the current snapshot and ends both event streams.
// Watchers receive the final readiness transition before their channels
// close. Reads fail with ErrNotReady from then on.
func (c *Container[S]) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.setReady(false)

	c.mu.Lock()
	old := c.current
	c.current = nil
	c.mu.Unlock()
	if old != nil {
		old.retire()
	}

	c.readyEvents.Close()
	c.configEvents.Close()
}

// swapIn publishes staged as the current snapshot and retires the
// previous holder. Retirement happens outside the acquire lock: once
// the pointer has moved, no reader can reach the old holder, so its
// disposal only waits on readers already counted.
func (c *Container[S]) swapIn(staged S) {
	h := &holder[S]{state: staged}

	c.mu.Lock()
	old := c.current
	c.current = h
	c.mu.Unlock()

	if old != nil {
		old.retire()
	}
}

// setReady publishes a readiness event only on actual transitions.
func (c *Container[S]) setReady(ready bool) {
	if c.ready.Swap(ready) == ready {
		return
	}
	if c.metrics != nil {
		c.metrics.RecordReadyStatus(ready)
	}
	c.readyEvents.Publish(ready)
}

func (c *Container[S]) snapshotConfig(s S) map[string]any {
	if c.configOf == nil {
		return nil
	}
	return c.configOf(s)
}

func (c *Container[S]) recordSwap(operation, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordSwap(operation, status, time.Since(start))
}
