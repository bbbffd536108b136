package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/chinenual/midirec"
)

const (
	// NumSlots is the number of rotating buffers of an EventChannel.
	NumSlots = 3

	// DefaultSlotCapacity is the number of events each track can hold in one
	// slot. It is large enough that the worker is rarely woken up, but small
	// enough that the sink does not fall far behind the audio thread.
	DefaultSlotCapacity = 1024
)

type (
	// EventChannel hands events from the audio thread to a worker goroutine
	// that feeds them into a Sink. Events are written into one of NumSlots
	// preallocated slots, each holding one vector per track. When any track
	// of the current slot fills up, all tracks move to the next slot together
	// and the worker is woken up to drain the full one.
	//
	// Generations increase monotonically and select slots modulo NumSlots;
	// the producer being NumSlots generations ahead of the worker means that
	// every slot is waiting to be drained. In that case Append blocks until
	// the worker catches up: events are never dropped and the buffers never
	// grow.
	EventChannel struct {
		slots    [NumSlots][midirec.NumTracks][]midirec.Event
		capacity int

		gen       atomic.Int64 // slot the producer is writing
		workerGen atomic.Int64 // slots before this one have been drained
		stalls    atomic.Int64

		mu           sync.Mutex
		workerCond   *sync.Cond // producer -> worker: a slot is full, or closing
		producerCond *sync.Cond // worker -> producer: a slot was drained
		running      bool       // guarded by mu

		sink    midirec.Sink
		onClose func()
		done    chan struct{} // closed when the worker exits; guarded by mu
	}
)

// NewEventChannel preallocates all slots. A non-positive slotCapacity
// selects DefaultSlotCapacity.
func NewEventChannel(sink midirec.Sink, slotCapacity int) *EventChannel {
	if slotCapacity <= 0 {
		slotCapacity = DefaultSlotCapacity
	}
	c := &EventChannel{sink: sink, capacity: slotCapacity}
	for i := range c.slots {
		for t := range c.slots[i] {
			c.slots[i][t] = make([]midirec.Event, 0, slotCapacity)
		}
	}
	c.workerCond = sync.NewCond(&c.mu)
	c.producerCond = sync.NewCond(&c.mu)
	closed := make(chan struct{})
	close(closed)
	c.done = closed
	return c
}

// Start launches the worker, which first clears the sink. onClose, if not
// nil, is run by the worker after the final drain, before Wait returns.
// Start waits for a previous worker to finish first; real-time callers check
// Busy before calling it. It must not be called concurrently with Append or
// Close. The stall count starts again from zero.
func (c *EventChannel) Start(onClose func()) {
	c.Wait()
	c.gen.Store(0)
	c.stalls.Store(0)
	c.workerGen.Store(0)
	for i := range c.slots {
		for t := range c.slots[i] {
			c.slots[i][t] = c.slots[i][t][:0]
		}
	}
	c.onClose = onClose
	done := make(chan struct{})
	c.mu.Lock()
	c.running = true
	c.done = done
	c.mu.Unlock()
	go c.run(done)
}

// Append records an event on the audio thread. It does not allocate; it
// blocks only if every slot is waiting to be drained.
func (c *EventChannel) Append(ev midirec.Event) {
	if ev.Track < 0 || ev.Track >= midirec.NumTracks {
		return
	}
	g := c.gen.Load()
	if g-c.workerGen.Load() >= NumSlots {
		c.stalls.Add(1)
		c.mu.Lock()
		for g-c.workerGen.Load() >= NumSlots {
			c.producerCond.Wait()
		}
		c.mu.Unlock()
	}
	slot := &c.slots[g%NumSlots]
	slot[ev.Track] = append(slot[ev.Track], ev)
	if len(slot[ev.Track]) >= c.capacity {
		c.mu.Lock()
		c.gen.Store(g + 1)
		c.workerCond.Signal()
		c.mu.Unlock()
	}
}

// Close tells the worker to drain everything that is left and exit. It
// returns immediately; use Wait to join the worker. Append must not be
// called after Close.
func (c *EventChannel) Close() {
	c.mu.Lock()
	c.running = false
	c.workerCond.Signal()
	c.mu.Unlock()
}

// Wait blocks until the worker has finished, including onClose.
func (c *EventChannel) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	<-done
}

// Busy reports whether the worker of the last session has not exited yet,
// for instance because onClose is still writing a file.
func (c *EventChannel) Busy() bool {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop closes the channel and joins the worker.
func (c *EventChannel) Stop() {
	c.Close()
	c.Wait()
}

// Running reports whether a worker has been started and not yet closed.
func (c *EventChannel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stalls returns how many times Append had to wait for the worker since the
// last Start.
func (c *EventChannel) Stalls() int64 {
	return c.stalls.Load()
}

func (c *EventChannel) run(done chan<- struct{}) {
	defer close(done)
	c.sink.Clear()
	c.sink.SetTicksPerQuarter(midirec.TicksPerQuarter)
	c.mu.Lock()
	for {
		for c.running && c.workerGen.Load() == c.gen.Load() {
			c.workerCond.Wait()
		}
		for w := c.workerGen.Load(); w < c.gen.Load(); w++ {
			c.mu.Unlock()
			c.drain(w)
			c.mu.Lock()
			c.workerGen.Store(w + 1)
			c.producerCond.Signal()
		}
		if !c.running {
			break
		}
	}
	c.mu.Unlock()
	// the producer has stopped: the slot it was writing is only partially
	// filled, but it still holds events
	c.drain(c.gen.Load())
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *EventChannel) drain(gen int64) {
	slot := &c.slots[gen%NumSlots]
	for t := range slot {
		for i := range slot[t] {
			ev := &slot[t][i]
			switch ev.Kind {
			case midirec.TempoEvent:
				c.sink.AddTempoMarker(t, ev.Tick, ev.Tempo)
			default:
				c.sink.AddEvent(t, ev.Tick, ev.Message.Bytes())
			}
		}
		slot[t] = slot[t][:0]
	}
}
