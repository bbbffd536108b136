package recorder

import "github.com/chinenual/midirec"

type (
	// Port is one input jack as seen by the audio thread: whether a cable is
	// plugged in and the voltages of its polyphonic channels.
	Port struct {
		Connected bool
		Channels  int
		Voltages  [midirec.MaxChannels]float32
	}

	// PortSet reports the connectivity of a grid of per-track inputs.
	PortSet interface {
		Connected(track, column int) bool
	}

	// Inputs are the ports of the master recorder, refreshed by the host
	// every sample.
	Inputs struct {
		Tempo  Port
		Run    Port
		Tracks [midirec.NumTracks][NumColumns]Port
	}

	// CCInputs are the ports of a CC expander.
	CCInputs struct {
		Tracks [midirec.NumTracks][midirec.NumCCColumns]Port
	}

	// ProcessArgs describe the sample being processed.
	ProcessArgs struct {
		SampleTime float64 // seconds since the previous sample
		Frame      int64   // sample index since the host started
	}
)

// Columns of the master recorder's per-track inputs.
const (
	PitchColumn = iota
	GateColumn
	VelocityColumn
	AftertouchColumn
	PitchBendColumn
	ModWheelColumn
	NumColumns
)

// Voltage returns the voltage of channel ch. A monophonic cable is
// broadcast to every channel; a disconnected port reads 0 V.
func (p *Port) Voltage(ch int) float32 {
	if !p.Connected || p.Channels <= 0 {
		return 0
	}
	if p.Channels == 1 {
		return p.Voltages[0]
	}
	if ch >= p.Channels || ch >= midirec.MaxChannels {
		return 0
	}
	return p.Voltages[ch]
}

// Poly returns the voltage of channel ch without broadcasting a monophonic
// cable: channels past the cable's polyphony read 0 V.
func (p *Port) Poly(ch int) float32 {
	if ch >= p.NumChannels() {
		return 0
	}
	return p.Voltages[ch]
}

// NumChannels is the polyphony of a connected cable, 0 if disconnected.
func (p *Port) NumChannels() int {
	if !p.Connected {
		return 0
	}
	return min(max(p.Channels, 0), midirec.MaxChannels)
}

// Set connects the port as a monophonic cable carrying v.
func (p *Port) Set(v float32) {
	p.Connected = true
	if p.Channels == 0 {
		p.Channels = 1
	}
	p.Voltages[0] = v
}

// Disconnect unplugs the port and zeroes its voltages.
func (p *Port) Disconnect() {
	*p = Port{}
}

func (in *Inputs) Connected(track, column int) bool {
	return in.Tracks[track][column].Connected
}

func (in *CCInputs) Connected(track, column int) bool {
	return in.Tracks[track][column].Connected
}
