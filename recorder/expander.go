package recorder

import (
	"sync/atomic"

	"github.com/chinenual/midirec"
)

// MaxChainLength bounds how far the chain of adjacent modules is walked.
const MaxChainLength = 32

// PendingCapacity is the number of messages reserved per track in an
// ExpanderMessage: a 14 bit CC on every column emits two messages.
const PendingCapacity = 2 * midirec.NumCCColumns

type (
	// Neighbor is any module that can sit next to a recorder.
	Neighbor interface {
		Slug() string
	}

	// Expander is a neighbor that contributes events to the recorder it is
	// chained to. Outgoing returns the message the expander flipped most
	// recently; the recorder only reads it, and only during the tick it was
	// flipped in.
	Expander interface {
		Neighbor
		Outgoing() *ExpanderMessage
		// Next is the neighbor on the side away from the recorder, or nil.
		Next() Neighbor
	}

	// ChainedExpander can also tell which neighbor is on its recorder side.
	// Expanders use it to find the recorder they feed.
	ChainedExpander interface {
		Expander
		Prev() Neighbor
	}

	// RecordingStatus is implemented by the recorder, so that expanders
	// walking towards it can tell whether to produce anything.
	RecordingStatus interface {
		Neighbor
		IsRecording() bool
	}

	// ExpanderMessage is what an expander hands to the recorder each tick:
	// which tracks have inputs connected and which messages were generated
	// since the last flip.
	ExpanderMessage struct {
		Active  [midirec.NumTracks]bool
		Pending [midirec.NumTracks][]midirec.Message
	}

	// ExpanderLink owns the two messages of a producer/consumer pair. The
	// producer writes Producer() and calls Flip, which hands that message to
	// the consumer and gives the producer the other one. Nothing is copied;
	// only the index of the readable message changes.
	ExpanderLink struct {
		msgs     [2]ExpanderMessage
		consumer atomic.Int32
	}
)

func NewExpanderLink() *ExpanderLink {
	l := &ExpanderLink{}
	for i := range l.msgs {
		for t := range l.msgs[i].Pending {
			l.msgs[i].Pending[t] = make([]midirec.Message, 0, PendingCapacity)
		}
	}
	return l
}

// Producer returns the message the producer may write.
func (l *ExpanderLink) Producer() *ExpanderMessage {
	return &l.msgs[1-l.consumer.Load()]
}

// Consumer returns the message flipped most recently.
func (l *ExpanderLink) Consumer() *ExpanderMessage {
	return &l.msgs[l.consumer.Load()]
}

// Flip transfers the producer's message to the consumer. Only the producer
// calls Flip.
func (l *ExpanderLink) Flip() {
	l.consumer.Store(1 - l.consumer.Load())
}

// Reset clears both messages.
func (m *ExpanderMessage) Reset() {
	for t := range m.Pending {
		m.Active[t] = false
		m.Pending[t] = m.Pending[t][:0]
	}
}

// Push queues msg on a track. It never grows the reserved capacity; when the
// track is full the message is rejected and Push returns false.
func (m *ExpanderMessage) Push(track int, msg midirec.Message) bool {
	p := m.Pending[track]
	if len(p) == cap(p) {
		return false
	}
	m.Pending[track] = append(p, msg)
	return true
}

// walkChain yields the expanders adjacent to a module, starting from first
// and stopping at the first neighbor that is not an Expander: a broken chain
// contributes nothing past the break.
func walkChain(first Neighbor, yield func(Expander) bool) {
	n := first
	for i := 0; i < MaxChainLength && n != nil; i++ {
		e, ok := n.(Expander)
		if !ok || !yield(e) {
			return
		}
		n = e.Next()
	}
}

// findRecorder walks from first towards the recorder, passing through
// chained expanders only.
func findRecorder(first Neighbor) RecordingStatus {
	n := first
	for i := 0; i < MaxChainLength && n != nil; i++ {
		if rs, ok := n.(RecordingStatus); ok {
			return rs
		}
		e, ok := n.(ChainedExpander)
		if !ok {
			return nil
		}
		n = e.Prev()
	}
	return nil
}
