package host

import (
	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/recorder"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// MIDIEvent is an incoming MIDI message due at a frame of the current
	// block.
	MIDIEvent struct {
		Frame   int
		Message midirec.Message
	}

	// EventSource yields the MIDI events of the block being processed. The
	// engine calls NextEvent for every frame until it returns false; an
	// event is returned once its Frame is at or before frame.
	EventSource interface {
		NextEvent(frame int) (event MIDIEvent, ok bool)
	}

	// NoteInput patches incoming MIDI onto the inputs of a recorder, the way
	// a MIDI to CV module would: MIDI channel n drives track n, notes are
	// spread over the voices of the track and controllers are routed to the
	// bend, mod wheel and CC expander columns.
	NoteInput struct {
		in     *recorder.Inputs
		cc     []recorder.CCInputs
		cfg    midirec.Config
		voices int

		keys   [midirec.NumTracks][midirec.MaxChannels]int // -1 when free
		next   [midirec.NumTracks]int
		mod    [midirec.NumTracks]int
		values [midirec.NumTracks][midirec.NumCCColumns]int

		queue chan MIDIEvent
	}
)

// queueSize is the number of live messages buffered between the MIDI driver
// and the audio thread. Messages arriving on a full queue are dropped.
const queueSize = 1024

// NewNoteInput connects the pitch, gate and velocity inputs of the first
// tracks tracks, each with voices polyphonic channels. Other inputs connect
// when the first message for them arrives.
func NewNoteInput(in *recorder.Inputs, cc []recorder.CCInputs, cfg midirec.Config, tracks, voices int) *NoteInput {
	n := &NoteInput{
		in:     in,
		cc:     cc,
		cfg:    cfg,
		voices: min(max(voices, 1), midirec.MaxChannels),
		queue:  make(chan MIDIEvent, queueSize),
	}
	for t := range n.keys {
		for v := range n.keys[t] {
			n.keys[t][v] = -1
		}
	}
	for t := 0; t < min(tracks, midirec.NumTracks); t++ {
		for _, col := range [...]int{recorder.PitchColumn, recorder.GateColumn, recorder.VelocityColumn} {
			n.connect(&in.Tracks[t][col], n.voices)
		}
	}
	return n
}

// Handle queues a message from a live MIDI driver; it has the signature of a
// midi.ListenTo callback and is safe to call from any goroutine.
func (n *NoteInput) Handle(msg midi.Message, timestampms int32) {
	var ev MIDIEvent
	ev.Message.Len = uint8(copy(ev.Message.Data[:], msg))
	recorder.TrySend(n.queue, ev)
}

// NextEvent hands out the queued live messages, all at the start of the
// block.
func (n *NoteInput) NextEvent(frame int) (event MIDIEvent, ok bool) {
	select {
	case ev := <-n.queue:
		return ev, true
	default:
		return MIDIEvent{}, false
	}
}

// Apply sets the port voltages for one message. It reports whether a port
// was connected, in which case the modules must be told the topology
// changed. Apply runs on the audio thread and does not allocate.
func (n *NoteInput) Apply(msg []byte) (portsChanged bool) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	m := midi.Message(msg)
	switch {
	case m.GetNoteStart(&ch, &key, &vel):
		if int(ch) < midirec.NumTracks {
			return n.noteOn(int(ch), int(key), int(vel))
		}
	case m.GetNoteEnd(&ch, &key):
		if int(ch) < midirec.NumTracks {
			n.noteOff(int(ch), int(key))
		}
	case m.GetPolyAfterTouch(&ch, &key, &vel):
		if int(ch) < midirec.NumTracks {
			return n.aftertouch(int(ch), int(key), int(vel))
		}
	case m.GetAfterTouch(&ch, &vel):
		if int(ch) < midirec.NumTracks {
			return n.aftertouch(int(ch), -1, int(vel))
		}
	case m.GetPitchBend(&ch, &rel, &abs):
		if int(ch) < midirec.NumTracks {
			p := &n.in.Tracks[ch][recorder.PitchBendColumn]
			portsChanged = n.connect(p, 1)
			p.Voltages[0] = n.cfg.PitchBendRange.Range().Voltage(int(abs), midirec.Max14Bit)
		}
	case m.GetControlChange(&ch, &cc, &val):
		if int(ch) < midirec.NumTracks {
			return n.controlChange(int(ch), int(cc), int(val))
		}
	}
	return portsChanged
}

func (n *NoteInput) noteOn(t, key, vel int) bool {
	ports := &n.in.Tracks[t]
	changed := false
	for _, col := range [...]int{recorder.PitchColumn, recorder.GateColumn, recorder.VelocityColumn} {
		changed = n.connect(&ports[col], n.voices) || changed
	}
	for i := 0; i < n.voices; i++ {
		v := (n.next[t] + i) % n.voices
		if n.keys[t][v] >= 0 {
			continue
		}
		// round robin, so a voice released and retriggered in the same
		// block is not reused
		n.next[t] = (v + 1) % n.voices
		n.keys[t][v] = key
		ports[recorder.PitchColumn].Voltages[v] = float32(key-60) / 12
		ports[recorder.VelocityColumn].Voltages[v] = n.cfg.VelocityRange.Range().Voltage(vel, midirec.Max7Bit)
		ports[recorder.GateColumn].Voltages[v] = 10
		return changed
	}
	return changed
}

func (n *NoteInput) noteOff(t, key int) {
	for v := 0; v < n.voices; v++ {
		if n.keys[t][v] == key {
			n.keys[t][v] = -1
			n.in.Tracks[t][recorder.GateColumn].Voltages[v] = 0
			return
		}
	}
}

// aftertouch sets the pressure of the voice playing key, or of every voice
// for channel pressure (key < 0).
func (n *NoteInput) aftertouch(t, key, pressure int) bool {
	p := &n.in.Tracks[t][recorder.AftertouchColumn]
	changed := n.connect(p, n.voices)
	volts := n.cfg.AftertouchRange.Range().Voltage(pressure, midirec.Max7Bit)
	for v := 0; v < n.voices; v++ {
		if key < 0 || n.keys[t][v] == key {
			p.Voltages[v] = volts
		}
	}
	return changed
}

func (n *NoteInput) controlChange(t, cc, val int) bool {
	switch cc {
	case midirec.ModWheelCC:
		n.mod[t] = val<<7 | n.mod[t]&0x7f
		return n.modWheel(t, val)
	case midirec.ModWheelCC + midirec.LSBOffsetCC:
		if n.cfg.ModWheel14Bit {
			n.mod[t] = n.mod[t]&^0x7f | val
			return n.modWheel(t, n.mod[t]>>7)
		}
	}
	// controllers go to the first expander only
	if len(n.cc) == 0 {
		return false
	}
	changed := false
	for col, c := range n.cfg.CC {
		var v int
		switch {
		case c.CC == cc && c.Is14Bit:
			v = val<<7 | n.values[t][col]&0x7f
		case c.CC == cc:
			v = val
		case c.Is14Bit && c.CC+midirec.LSBOffsetCC == cc:
			v = n.values[t][col]&^0x7f | val
		default:
			continue
		}
		n.values[t][col] = v
		limit := midirec.Max7Bit
		if c.Is14Bit {
			limit = midirec.Max14Bit
		}
		p := &n.cc[0].Tracks[t][col]
		changed = n.connect(p, 1) || changed
		p.Voltages[0] = c.Range.Range().Voltage(v, limit)
	}
	return changed
}

func (n *NoteInput) modWheel(t, msb int) bool {
	p := &n.in.Tracks[t][recorder.ModWheelColumn]
	changed := n.connect(p, 1)
	rng := n.cfg.ModWheelRange.Range()
	if n.cfg.ModWheel14Bit {
		p.Voltages[0] = rng.Voltage(n.mod[t], midirec.Max14Bit)
	} else {
		p.Voltages[0] = rng.Voltage(msb, midirec.Max7Bit)
	}
	return changed
}

func (n *NoteInput) connect(p *recorder.Port, channels int) bool {
	if p.Connected {
		return false
	}
	p.Connected = true
	p.Channels = channels
	return true
}
