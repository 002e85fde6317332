package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultWatchBuffer is the channel capacity used by Watch when the caller
// passes a non-positive buffer.
const DefaultWatchBuffer = 64

// Store holds the current State and fans every change out to subscribers.
// Only the owning Controller mutates it; everyone else reads.
type Store struct {
	mu       sync.RWMutex
	state    State
	now      func() time.Time
	subs     map[uint64]func(State)
	watchers map[uint64]chan State
	nextID   uint64
	closed   bool
}

func newStore(now func() time.Time) *Store {
	return &Store{
		state:    initialState(),
		now:      now,
		subs:     make(map[uint64]func(State)),
		watchers: make(map[uint64]chan State),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe registers fn to be called with a copy of the state after every
// change, in change order, on the controller's dispatcher. fn is not called
// with the current state; read Snapshot for that. The returned function
// removes the subscription and is safe to call more than once.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Watch returns a channel that receives the current state immediately and
// then every change. If the channel is full, changes are dropped rather than
// blocking the controller; Snapshot always has the latest. The channel is
// closed when ctx is done or the store is closed.
func (s *Store) Watch(ctx context.Context, buffer int) <-chan State {
	if buffer <= 0 {
		buffer = DefaultWatchBuffer
	}
	ch := make(chan State, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.state.Clone()
	s.mu.Unlock()

	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	})
	return ch
}

// apply mutates the state under the write lock, stamps UpdatedAt and then
// notifies watchers and subscribers. It must only be called from the
// controller's dispatcher so that notifications keep mutation order.
func (s *Store) apply(mutate func(*State)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	mutate(&s.state)
	s.state.UpdatedAt = s.now()
	snap := s.state.Clone()

	for _, w := range s.watchers {
		select {
		case w <- snap.Clone():
		default:
		}
	}

	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}

// close drops all subscribers and closes every watch channel. Later calls to
// apply are ignored.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
	clear(s.subs)
}
