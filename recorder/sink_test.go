package recorder_test

import (
	"sync"

	"github.com/chinenual/midirec"
)

type sinkEvent struct {
	track int
	tick  int64
	msg   midirec.Message
	tempo float64
}

// memSink records everything it is given. block, if not nil, is received
// from before each AddEvent, which lets a test stall the worker.
type memSink struct {
	mu       sync.Mutex
	events   []sinkEvent
	deleted  []int
	written  []string
	tpq      int
	clears   int
	block    chan struct{}
	writeErr error
}

func (s *memSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.deleted = nil
	s.clears++
}

func (s *memSink) SetTicksPerQuarter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tpq = n
}

func (s *memSink) AddEvent(track int, tick int64, msg []byte) {
	if s.block != nil {
		<-s.block
	}
	var m midirec.Message
	m.Len = uint8(copy(m.Data[:], msg))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{track: track, tick: tick, msg: m})
}

func (s *memSink) AddTempoMarker(track int, tick int64, bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{track: track, tick: tick, tempo: bpm})
}

func (s *memSink) DeleteTrack(track int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, track)
}

func (s *memSink) Write(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, path)
	return s.writeErr
}

func (s *memSink) snapshot() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

// messages returns only the non-tempo events.
func (s *memSink) messages() []sinkEvent {
	var ret []sinkEvent
	for _, e := range s.snapshot() {
		if e.tempo == 0 {
			ret = append(ret, e)
		}
	}
	return ret
}
