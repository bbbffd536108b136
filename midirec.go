package midirec

const (
	// NumTracks is the number of independent tracks a recorder samples; each
	// becomes one track of the written file.
	NumTracks = 10

	// MaxChannels is the maximum polyphony of a single cable. Voice c of a
	// track is written to MIDI channel c.
	MaxChannels = 16

	// TicksPerQuarter is the resolution of the written file.
	TicksPerQuarter = 960

	DefaultTempo = 120.0
	MinTempo     = 1.0
	MaxTempo     = 999.0
)

type (
	// Sink is the non-real-time collaborator that accumulates the recorded
	// events and writes them into a file. All methods are called from the
	// recorder's worker goroutine, never from the real-time thread. AddEvent
	// must copy msg; the slice is reused after the call returns.
	Sink interface {
		Clear()
		SetTicksPerQuarter(n int)
		AddEvent(track int, tick int64, msg []byte)
		AddTempoMarker(track int, tick int64, bpm float64)
		// DeleteTrack removes a track, shifting the ones after it down by one.
		DeleteTrack(track int)
		Write(path string) error
	}

	// Event is a message or a tempo marker labeled with the track and the
	// tick where it occurs. Events are plain values so that they can be
	// stored in preallocated buffers without allocating.
	Event struct {
		Track   int
		Tick    int64
		Kind    EventKind
		Message Message
		Tempo   float64 // valid when Kind == TempoEvent
	}

	EventKind int
)

const (
	MessageEvent EventKind = iota
	TempoEvent
)

// ClampTempo limits bpm to [MinTempo, MaxTempo]. Zero, negative and NaN
// tempos map to MinTempo; the clock never sees them.
func ClampTempo(bpm float64) float64 {
	if !(bpm >= MinTempo) {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}
