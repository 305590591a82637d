package state

import "sync"

// Stream broadcasts values to any number of subscribers. Every
// subscriber receives every value published after it subscribed, in
// publish order. Publishing never blocks: each subscription queues
// pending values and drains them to its channel from its own goroutine,
// so a slow consumer delays nobody but itself.
type Stream[T any] struct {
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
	mu     sync.Mutex
}

// NewStream creates an empty broadcast stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		subs: make(map[uint64]*Subscription[T]),
	}
}

// Publish delivers v to every active subscriber. Values published after
// Close are dropped.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for _, sub := range s.subs {
		sub.push(v)
	}
}

// Subscribe registers a new subscriber. The subscription sees every
// value published from this point on. Callers must Cancel the
// subscription when done or its delivery goroutine lives on.
// Subscribing to a closed stream yields an already-closed channel.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscription[T]{
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	if s.closed {
		close(sub.out)
		sub.closed = true
		return sub
	}

	id := s.nextID
	s.nextID++
	sub.detach = func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	s.subs[id] = sub
	go sub.run()

	return sub
}

// Close ends the stream. Every subscription receives the values already
// queued for it, then its channel closes. Later publishes are dropped.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	subs := make([]*Subscription[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[uint64]*Subscription[T])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.finish()
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs)
}

// Subscription is one subscriber's view of a Stream. Values arrive on
// the channel returned by C in publish order; the channel closes when
// the subscription is cancelled or the stream ends.
type Subscription[T any] struct {
	out  chan T
	wake chan struct{}
	done chan struct{}

	queue     []T
	finishing bool
	closed    bool
	mu        sync.Mutex

	detach func()
	cancel sync.Once
}

// C returns the delivery channel.
func (sub *Subscription[T]) C() <-chan T {
	return sub.out
}

// Cancel detaches the subscription and closes its channel. Values not
// yet received are discarded. Cancel is safe to call more than once and
// safe to call concurrently with stream activity.
func (sub *Subscription[T]) Cancel() {
	sub.cancel.Do(func() {
		if sub.detach != nil {
			sub.detach()
		}
		close(sub.done)
	})
}

// push appends a value to the pending queue and wakes the drain loop.
func (sub *Subscription[T]) push(v T) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, v)
	sub.mu.Unlock()
	sub.signal()
}

// finish tells the drain loop to exit once the pending queue is empty.
func (sub *Subscription[T]) finish() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.finishing = true
	sub.mu.Unlock()
	sub.signal()
}

func (sub *Subscription[T]) signal() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// run moves values from the pending queue to the delivery channel,
// preserving order. It exits when cancelled, or when the stream closed
// and the queue drained.
func (sub *Subscription[T]) run() {
	defer close(sub.out)

	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}

		for {
			sub.mu.Lock()
			batch := sub.queue
			sub.queue = nil
			finishing := sub.finishing
			sub.mu.Unlock()

			if len(batch) == 0 {
				if finishing {
					return
				}
				break
			}

			for _, v := range batch {
				select {
				case sub.out <- v:
				case <-sub.done:
					return
				}
			}
		}
	}
}
