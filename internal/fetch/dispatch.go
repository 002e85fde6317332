package fetch

import "sync"

// Dispatcher is the execution context state changes are marshaled onto.
// Everything a Dispatcher runs must observe submission order.
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs work on the calling goroutine, one function at a time.
// Subscriber callbacks run while it is held, so they must not call back into
// the controller synchronously; start a goroutine instead.
type Inline struct {
	mu sync.Mutex
}

// Dispatch runs fn before returning.
func (d *Inline) Dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// SerialDispatcher runs work on a single goroutine it owns, in FIFO order.
// It plays the role of a UI thread: state mutations and subscriber callbacks
// never race with each other. The queue is unbounded, so Dispatch never
// blocks and callbacks may dispatch more work.
type SerialDispatcher struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewSerialDispatcher starts the dispatcher goroutine. Call Close to stop it.
func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Dispatch queues fn. After Close, fn runs on the caller's goroutine so that
// late completions still resolve.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		fn()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close runs everything already queued, then stops the goroutine. It must not
// be called from a dispatched function.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	d.mu.Unlock()
	<-d.done
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}
