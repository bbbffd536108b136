package recorder

// State of a Recorder. Idle -> Armed only happens with AlignToFirstNote;
// otherwise Idle -> Recording directly. Any state returns to Idle when the
// run request goes low.
type State int32

const (
	Idle State = iota
	Armed
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	}
	return "unknown"
}
