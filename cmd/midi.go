package cmd

// MIDIInput is an open live MIDI input port.
type MIDIInput interface {
	String() string
	Close()
}

// NullMIDIInput is used when no MIDI input could be opened; the recorder can
// still be driven by its run input and the remote control.
type NullMIDIInput struct{}

func (NullMIDIInput) String() string { return "none" }
func (NullMIDIInput) Close()         {}
