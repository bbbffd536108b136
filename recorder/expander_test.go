package recorder_test

import (
	"testing"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/recorder"
)

func TestExpanderLinkFlip(t *testing.T) {
	l := recorder.NewExpanderLink()
	p := l.Producer()
	if p == l.Consumer() {
		t.Fatalf("producer and consumer must not share a message")
	}
	p.Active[1] = true
	p.Push(1, midirec.NoteOn(0, 60, 1))
	l.Flip()
	if l.Consumer() != p {
		t.Fatalf("flip should hand the producer's message to the consumer")
	}
	if !l.Consumer().Active[1] || len(l.Consumer().Pending[1]) != 1 {
		t.Fatalf("the message content should survive the flip")
	}
	if l.Producer() == p {
		t.Fatalf("the producer should get the other message after a flip")
	}
}

func TestExpanderMessagePushIsBounded(t *testing.T) {
	l := recorder.NewExpanderLink()
	m := l.Producer()
	for i := 0; i < recorder.PendingCapacity; i++ {
		if !m.Push(0, midirec.ControlChange(0, 2, uint8(i))) {
			t.Fatalf("push %v rejected below capacity", i)
		}
	}
	if m.Push(0, midirec.ControlChange(0, 2, 0)) {
		t.Fatalf("push above capacity should be rejected")
	}
	m.Reset()
	if len(m.Pending[0]) != 0 || cap(m.Pending[0]) != recorder.PendingCapacity {
		t.Fatalf("reset should keep the reserved capacity")
	}
}
