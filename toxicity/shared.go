package toxicity

import (
	"context"
	"sync"

	"github.com/kilroybot/kilroy-face-twitter/errors"
)

// Shared reference-counts one Estimator across its holders. The estimator is
// built on the first Acquire and closed when the last outstanding Handle is
// released; a later Acquire builds a fresh one.
type Shared struct {
	build func() (Estimator, error)

	mu        sync.Mutex
	estimator Estimator
	refs      int
}

// NewShared wraps an estimator factory. The factory runs under the pool's
// lock and should not block on I/O.
func NewShared(build func() (Estimator, error)) *Shared {
	return &Shared{build: build}
}

// Acquire returns a handle on the shared estimator, building it if no holder
// currently exists.
func (s *Shared) Acquire() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.estimator == nil {
		estimator, err := s.build()
		if err != nil {
			return nil, errors.Wrap(err, "Shared", "Acquire", "estimator construction")
		}
		s.estimator = estimator
	}
	s.refs++

	return &Handle{shared: s, estimator: s.estimator}, nil
}

// Refs reports the number of outstanding handles.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Shared) release(ctx context.Context, estimator Estimator) error {
	s.mu.Lock()
	s.refs--
	last := s.refs == 0 && s.estimator == estimator
	if last {
		s.estimator = nil
	}
	s.mu.Unlock()

	if last {
		return estimator.Close(ctx)
	}
	return nil
}

// Handle is one holder's reference to the shared estimator. Release is
// idempotent; scoring through a released handle is a caller bug and fails.
type Handle struct {
	shared    *Shared
	estimator Estimator

	mu       sync.Mutex
	released bool
}

// Score delegates to the shared estimator.
func (h *Handle) Score(ctx context.Context, text string) (float64, error) {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return 0, errors.WrapInvalid(errors.ErrAlreadyStopped,
			"Handle", "Score", "released handle check")
	}
	return h.estimator.Score(ctx, text)
}

// Release returns the reference. The last release closes the estimator.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	return h.shared.release(ctx, h.estimator)
}
