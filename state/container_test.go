package state

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState is a minimal composite state with instrumented lifecycle.
type testState struct {
	value int
	items []string

	clones   *atomic.Int64
	disposes *atomic.Int64
	cloneErr error
}

func newTestState(value int) *testState {
	return &testState{
		value:    value,
		clones:   &atomic.Int64{},
		disposes: &atomic.Int64{},
	}
}

func (s *testState) Clone() (*testState, error) {
	s.clones.Add(1)
	if s.cloneErr != nil {
		return nil, s.cloneErr
	}
	copied := *s
	copied.items = append([]string(nil), s.items...)
	return &copied, nil
}

func (s *testState) Dispose() {
	s.disposes.Add(1)
}

func configOf(s *testState) map[string]any {
	return map[string]any{"value": s.value}
}

func newTestContainer() *Container[*testState] {
	return NewContainer(WithConfigFunc[*testState](configOf))
}

func publish(t *testing.T, c *Container[*testState], s *testState) *testState {
	t.Helper()
	published, err := c.Replace(context.Background(), func(context.Context) (*testState, error) {
		return s, nil
	})
	require.NoError(t, err)
	return published
}

func TestContainerStartsLoading(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	assert.False(t, c.Ready())

	_, _, err := c.Read()
	require.ErrorIs(t, err, ErrNotReady)

	err = c.View(func(*testState) error { return nil })
	require.ErrorIs(t, err, ErrNotReady)
}

func TestContainerReplacePublishesFirstSnapshot(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	publish(t, c, newTestState(1))

	assert.True(t, c.Ready())
	assert.Equal(t, int64(1), c.Generation())

	s, release, err := c.Read()
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 1, s.value)
}

func TestContainerReconfigureSwapsSnapshot(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	initial := publish(t, c, newTestState(1))

	updated, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.value)
	assert.Equal(t, int64(2), c.Generation())

	err = c.View(func(s *testState) error {
		assert.Equal(t, 2, s.value)
		return nil
	})
	require.NoError(t, err)

	// The superseded snapshot had no readers, so it was disposed at swap.
	assert.Equal(t, int64(1), initial.clones.Load())
	assert.Equal(t, int64(1), initial.disposes.Load())
}

func TestContainerReconfigureRollback(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	initial := publish(t, c, newTestState(1))
	boom := stderrors.New("boom")

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 99 // partial mutation that must never become visible
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.True(t, c.Ready(), "readiness must recover after rollback")
	assert.Equal(t, int64(1), c.Generation(), "failed swap must not bump the generation")

	err = c.View(func(s *testState) error {
		assert.Equal(t, 1, s.value, "previous snapshot must remain current")
		return nil
	})
	require.NoError(t, err)

	// Only the discarded staging copy was disposed.
	assert.Equal(t, int64(1), initial.clones.Load())
	assert.Equal(t, int64(1), initial.disposes.Load())
}

func TestContainerCloneFailureRollsBack(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	initial := publish(t, c, newTestState(1))
	initial.cloneErr = stderrors.New("resource re-acquisition failed")

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		t.Error("mutator must not run when staging fails")
		return nil
	})
	require.ErrorIs(t, err, initial.cloneErr)

	assert.True(t, c.Ready(), "readiness must recover after a failed staging copy")
	assert.Equal(t, int64(1), c.Generation())
	assert.Equal(t, int64(0), initial.disposes.Load(), "current snapshot must stay live")

	err = c.View(func(s *testState) error {
		assert.Equal(t, 1, s.value)
		return nil
	})
	require.NoError(t, err)
}

func TestContainerReconfigureBeforeFirstSnapshot(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		return nil
	})
	require.Error(t, err)
}

func TestContainerReaderHoldsSupersededSnapshot(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	initial := publish(t, c, newTestState(1))

	held, release, err := c.Read()
	require.NoError(t, err)

	_, err = c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 2
		return nil
	})
	require.NoError(t, err)

	// The reader keeps the old snapshot alive and intact.
	assert.Equal(t, 1, held.value)
	assert.Equal(t, int64(0), initial.disposes.Load())

	release()
	release() // release is idempotent

	assert.Equal(t, int64(1), initial.disposes.Load(), "drained snapshot must be disposed once")
}

func TestContainerReadFailsDuringSwap(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	publish(t, c, newTestState(1))

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		_, _, readErr := c.Read()
		assert.ErrorIs(t, readErr, ErrNotReady, "reads must fail fast mid-swap")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, c.Ready())
}

func TestContainerWatchReadyOrdering(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	sub := c.WatchReady()
	defer sub.Cancel()

	publish(t, c, newTestState(1))

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 2
		return nil
	})
	require.NoError(t, err)

	_, err = c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		return stderrors.New("boom")
	})
	require.Error(t, err)

	// First build: true. Success: false, true. Rollback: false, true.
	want := []bool{true, false, true, false, true}
	assert.Equal(t, want, collect(t, sub, len(want)))
}

func TestContainerWatchConfigEvents(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	sub := c.WatchConfig()
	defer sub.Cancel()

	// The first build has no previous configuration and emits nothing.
	publish(t, c, newTestState(1))

	_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 2
		return nil
	})
	require.NoError(t, err)

	_, err = c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
		s.value = 3
		return stderrors.New("boom")
	})
	require.Error(t, err)

	// The rollback publishes no config event; only the success did.
	events := collect(t, sub, 1)
	assert.Equal(t, map[string]any{"value": 1}, events[0].Old)
	assert.Equal(t, map[string]any{"value": 2}, events[0].New)

	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected config event after rollback: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContainerReplaceOverExistingSnapshot(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	initial := publish(t, c, newTestState(1))

	sub := c.WatchConfig()
	defer sub.Cancel()

	publish(t, c, newTestState(5))

	events := collect(t, sub, 1)
	assert.Equal(t, map[string]any{"value": 1}, events[0].Old)
	assert.Equal(t, map[string]any{"value": 5}, events[0].New)
	assert.Equal(t, int64(1), initial.disposes.Load())
}

func TestContainerReplaceFirstBuildFailure(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	_, err := c.Replace(context.Background(), func(context.Context) (*testState, error) {
		return nil, stderrors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, c.Ready(), "failed first build leaves the container loading")

	publish(t, c, newTestState(1))
	assert.True(t, c.Ready())
}

func TestContainerReplaceFailureKeepsCurrent(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	publish(t, c, newTestState(1))

	_, err := c.Replace(context.Background(), func(context.Context) (*testState, error) {
		return nil, stderrors.New("boom")
	})
	require.Error(t, err)

	assert.True(t, c.Ready(), "failed load must roll back to ready")
	err = c.View(func(s *testState) error {
		assert.Equal(t, 1, s.value)
		return nil
	})
	require.NoError(t, err)
}

func TestContainerConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	// Invariant: len(items) == value. A torn snapshot would break it.
	initial := newTestState(0)
	publish(t, c, initial)

	stop := make(chan struct{})
	var torn atomic.Int64
	var wg sync.WaitGroup

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s, release, err := c.Read()
				if err != nil {
					continue // mid-swap, retry
				}
				if len(s.items) != s.value {
					torn.Add(1)
				}
				release()
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
			s.value++
			s.items = append(s.items, fmt.Sprintf("item-%d", s.value))
			return nil
		})
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()

	assert.Zero(t, torn.Load(), "readers observed a torn snapshot")
	assert.Equal(t, int64(51), c.Generation())
}

func TestContainerWritersAreSerialized(t *testing.T) {
	c := newTestContainer()
	defer c.Close()

	publish(t, c, newTestState(0))

	var inFlight atomic.Int64
	var overlapped atomic.Bool
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := c.Reconfigure(context.Background(), func(_ context.Context, s *testState) error {
					if inFlight.Add(1) > 1 {
						overlapped.Store(true)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					s.value++
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "two mutators ran concurrently")

	err := c.View(func(s *testState) error {
		assert.Equal(t, 40, s.value, "every serialized increment must land")
		return nil
	})
	require.NoError(t, err)
}

func TestContainerClose(t *testing.T) {
	c := newTestContainer()

	current := publish(t, c, newTestState(1))

	readySub := c.WatchReady()
	defer readySub.Cancel()

	c.Close()
	c.Close() // idempotent

	_, _, err := c.Read()
	require.ErrorIs(t, err, ErrNotReady)

	_, err = c.Replace(context.Background(), func(context.Context) (*testState, error) {
		return newTestState(2), nil
	})
	require.Error(t, err)

	// The final transition arrives, then the channel closes.
	assert.Equal(t, []bool{false}, collect(t, readySub, 1))
	select {
	case _, ok := <-readySub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("ready channel never closed")
	}

	assert.Equal(t, int64(1), current.disposes.Load())
}
