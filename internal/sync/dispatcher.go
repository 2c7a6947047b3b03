package sync

import (
	"log"
	"sync"

	"github.com/vitalmesh/telemetryd/internal/wire"
)

// frameWriter is the live socket as seen by the dispatcher. Implemented by
// the ConnectionManager; the dispatcher's worker is the only caller of
// WriteFrame, which is what keeps concurrent producers from interleaving
// writes on the socket.
type frameWriter interface {
	WriteFrame(env wire.Envelope) error
	IsConnected() bool
}

// Dispatcher is the single-consumer, unbounded FIFO of outbound frames.
// Producers (scheduler batches, heartbeats, pong replies, registration,
// immediate sends) enqueue fully-formed envelopes; one worker drains the
// queue onto the socket. Frames dequeued while disconnected are dropped —
// transport delivery is at-most-once, durability is the store's job.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []wire.Envelope
	closed bool

	wake chan struct{}
	done chan struct{}

	writer frameWriter
}

// NewDispatcher creates a dispatcher writing to the given socket owner.
func NewDispatcher(writer frameWriter) *Dispatcher {
	return &Dispatcher{
		writer: writer,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends a frame to the outbound queue. Safe for concurrent use;
// never blocks.
func (d *Dispatcher) Enqueue(env wire.Envelope) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("Dispatcher closed, dropping %s frame %s", env.Type, env.ID)
		return
	}
	d.queue = append(d.queue, env)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until Close is called. Must run in its own
// goroutine; it is the sole writer to the socket.
func (d *Dispatcher) Run() {
	for {
		env, ok := d.next()
		if !ok {
			return
		}

		if !d.writer.IsConnected() {
			log.Printf("Socket not connected, dropping %s frame %s", env.Type, env.ID)
			continue
		}

		if err := d.writer.WriteFrame(env); err != nil {
			// The connection manager observes the same failure and
			// schedules a reconnect; nothing to do here but drop.
			log.Printf("Write failed for %s frame %s: %v", env.Type, env.ID, err)
		}
	}
}

// next pops the oldest queued frame, blocking until one is available or
// the dispatcher is closed.
func (d *Dispatcher) next() (wire.Envelope, bool) {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return wire.Envelope{}, false
		}
		if len(d.queue) > 0 {
			env := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return env, true
		}
		d.mu.Unlock()

		select {
		case <-d.wake:
		case <-d.done:
		}
	}
}

// QueueLen returns the number of frames waiting to be written.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops the worker. Queued frames are discarded; unacknowledged
// records stay unsynced in the store and are resent on the next run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.done)
}
