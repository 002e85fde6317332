package fetch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

var (
	// ErrSuperseded is returned by Refresh when a newer fetch started before
	// this one resolved. Its outcome was discarded.
	ErrSuperseded = errors.New("fetch: superseded by a newer fetch")

	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("fetch: controller closed")
)

// Controller drives the fetch state machine: idle -> loading -> success or
// error. Every call to FetchUsers is a full cycle; if cycles overlap, only
// the most recently started one is allowed to resolve the state.
type Controller struct {
	src        users.Source
	store      *Store
	dispatcher Dispatcher
	owned      *SerialDispatcher
	logger     *slog.Logger
	delay      time.Duration
	now        func() time.Time
	newID      func() string

	mu       sync.Mutex
	gen      atomic.Uint64
	closed   atomic.Bool
	base     context.Context
	cancel   context.CancelFunc
	inflight *sync.WaitGroup
}

// cycle tracks one FetchUsers invocation.
type cycle struct {
	id   string
	gen  uint64
	done chan struct{}
	err  error // set before done is closed
}

// New creates a controller reading from src. Unless WithDispatcher is given,
// the controller owns a SerialDispatcher that is stopped by Close.
func New(src users.Source, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		newID:    uuid.NewString,
		inflight: new(sync.WaitGroup),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.owned = NewSerialDispatcher()
		c.dispatcher = c.owned
	}
	c.store = newStore(c.now)
	c.base, c.cancel = context.WithCancel(context.Background())

	// In-flight cycles only hold a weak handle, so a controller dropped
	// without Close can still be collected; release what it owns when it is.
	runtime.AddCleanup(c, teardown.run, teardown{cancel: c.cancel, owned: c.owned})
	return c
}

type teardown struct {
	cancel context.CancelFunc
	owned  *SerialDispatcher
}

func (t teardown) run() {
	t.cancel()
	if t.owned != nil {
		go t.owned.Close()
	}
}

// Store exposes the observable state for presentation layers.
func (c *Controller) Store() *Store {
	return c.store
}

// State is shorthand for Store().Snapshot().
func (c *Controller) State() State {
	return c.store.Snapshot()
}

// FetchUsers starts a fetch cycle and returns immediately. The loading reset
// (IsLoading=true, HasError=false, Error=nil) is dispatched before FetchUsers
// returns, so observers always see it ahead of the outcome. With the Inline
// dispatcher State reflects it on return; with a SerialDispatcher it is
// visible once the dispatcher has run it, which Flush waits for. The returned
// channel is closed once the outcome has been applied or discarded.
func (c *Controller) FetchUsers(ctx context.Context) <-chan struct{} {
	return c.start(ctx).done
}

// Refresh runs one cycle and waits for it. It returns nil on success, the
// *users.FetchError that was surfaced on failure, ErrSuperseded if a newer
// cycle took over, or ErrClosed.
func (c *Controller) Refresh(ctx context.Context) error {
	cy := c.start(ctx)
	<-cy.done
	return cy.err
}

// Flush waits until every state change dispatched so far has been applied.
// After FetchUsers, Flush makes the loading reset visible through State.
// It must not be called from a subscriber callback.
func (c *Controller) Flush() {
	done := make(chan struct{})
	c.dispatcher.Dispatch(func() { close(done) })
	<-done
}

func (c *Controller) start(ctx context.Context) *cycle {
	cy := &cycle{done: make(chan struct{})}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		cy.err = ErrClosed
		close(cy.done)
		return cy
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	cy.gen = c.gen.Add(1)
	cy.id = c.newID()

	c.dispatcher.Dispatch(func() {
		c.store.apply(func(s *State) {
			s.IsLoading = true
			s.HasError = false
			s.Error = nil
			s.CycleID = cy.id
		})
	})
	c.logger.Debug("fetch: cycle started", "cycle", cy.id)

	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)

	h := weak.Make(c)
	src, delay, wg := c.src, c.delay, c.inflight
	go func() {
		defer wg.Done()
		defer cancel()
		defer stop()

		list, err := src.ListUsers(reqCtx)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-reqCtx.Done():
				t.Stop()
			}
		}

		ctrl := h.Value()
		if ctrl == nil {
			cy.err = ErrClosed
			close(cy.done)
			return
		}
		ctrl.resolve(cy, list, err)
	}()
	return cy
}

// resolve applies the terminal outcome of cy on the dispatcher. Loading is
// cleared in the same mutation, so no observer sees IsLoading=false next to
// a stale outcome.
func (c *Controller) resolve(cy *cycle, list []users.User, err error) {
	var fe *users.FetchError
	if err != nil && !errors.As(err, &fe) {
		fe = users.NewTransportError(err)
	}
	if fe == nil && list == nil {
		list = []users.User{}
	}

	c.dispatcher.Dispatch(func() {
		defer close(cy.done)

		if c.closed.Load() {
			cy.err = ErrClosed
			return
		}
		if cy.gen != c.gen.Load() {
			c.logger.Debug("fetch: discarding stale outcome", "cycle", cy.id)
			cy.err = ErrSuperseded
			return
		}

		c.store.apply(func(s *State) {
			// Concurrent starts may apply their resets out of order.
			s.CycleID = cy.id
			if fe != nil {
				s.HasError = true
				s.Error = fe
			} else {
				s.Users = list
			}
			s.IsLoading = false
		})

		if fe != nil {
			cy.err = fe
			c.logger.Warn("fetch: cycle failed", "cycle", cy.id, "kind", fe.Kind.String(), "error", fe.Message)
			return
		}
		c.logger.Info("fetch: cycle succeeded", "cycle", cy.id, "users", len(list))
	})
}

// Close cancels in-flight cycles, waits for them to settle, stops the owned
// dispatcher and closes all watch channels. It must not be called from a
// subscriber callback.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.closed.Store(true)
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()
	if c.owned != nil {
		c.owned.Close()
	}
	c.store.close()
}
