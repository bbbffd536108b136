package midirec

// Message is a channel voice message of at most three bytes. Unlike
// midi.Message of gomidi, it is a fixed size value: constructing one on the
// audio thread never allocates.
type Message struct {
	Len  uint8
	Data [3]byte
}

const (
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusPolyAfter     = 0xA0
	statusControlChange = 0xB0
	statusPitchBend     = 0xE0
)

// CC numbers with a fixed meaning for the recorder.
const (
	ModWheelCC    = 1
	LSBOffsetCC   = 32
	MaxController = 127
)

func message3(status, channel, a, b uint8) Message {
	return Message{Len: 3, Data: [3]byte{status | channel&0x0f, a & 0x7f, b & 0x7f}}
}

func NoteOn(channel, key, velocity uint8) Message {
	return message3(statusNoteOn, channel, key, velocity)
}

// NoteOff uses a release velocity of zero.
func NoteOff(channel, key uint8) Message {
	return message3(statusNoteOff, channel, key, 0)
}

func PolyAftertouch(channel, key, pressure uint8) Message {
	return message3(statusPolyAfter, channel, key, pressure)
}

func ControlChange(channel, controller, value uint8) Message {
	return message3(statusControlChange, channel, controller, value)
}

// PitchBend takes an unsigned 14 bit value; 8192 is the centre.
func PitchBend(channel uint8, value uint16) Message {
	if value > 0x3fff {
		value = 0x3fff
	}
	return message3(statusPitchBend, channel, uint8(value&0x7f), uint8(value>>7))
}

// Bytes returns the message bytes. The returned slice aliases m.
func (m *Message) Bytes() []byte {
	return m.Data[:m.Len]
}
