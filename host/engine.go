// Package host runs a recorder and its CC expanders the way a modular
// synthesizer host would: one Process call per audio block, the modules
// stepped once per frame, expanders before the recorder they feed.
package host

import (
	"math"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/recorder"
)

// Engine owns the port voltages and the module chain. Process and the
// functions sent to Exec run on the audio thread; everything else must be
// sent through Exec.
type Engine struct {
	Recorder  *recorder.Recorder
	Expanders []*recorder.CCExpander
	Inputs    recorder.Inputs
	CCInputs  []recorder.CCInputs
	Notes     *NoteInput

	sampleTime float64
	frame      int64
	exec       chan func()
}

// NewEngine creates a recorder with expanders CC expanders chained to it and
// a NoteInput that patches MIDI channels 1 to tracks onto its inputs.
func NewEngine(sampleRate int, cfg midirec.Config, sink midirec.Sink, broker *recorder.Broker, expanders, tracks, voices int) *Engine {
	e := &Engine{
		Recorder: recorder.New(cfg, sink, broker),
		CCInputs: make([]recorder.CCInputs, expanders),
		exec:     make(chan func(), 64),
	}
	e.SetSampleRate(sampleRate)
	for i := 0; i < expanders; i++ {
		e.Expanders = append(e.Expanders, recorder.NewCCExpander(cfg.CC, broker))
	}
	e.chain()
	e.Notes = NewNoteInput(&e.Inputs, e.CCInputs, cfg, tracks, voices)
	return e
}

func (e *Engine) SetSampleRate(sampleRate int) {
	e.sampleTime = 1 / float64(max(sampleRate, 1))
}

// chain places the expanders side by side to the right of the recorder.
func (e *Engine) chain() {
	if len(e.Expanders) == 0 {
		e.Recorder.SetNeighbor(nil)
		return
	}
	e.Recorder.SetNeighbor(e.Expanders[0])
	for i, x := range e.Expanders {
		var prev, next recorder.Neighbor = e.Recorder, nil
		if i > 0 {
			prev = e.Expanders[i-1]
		}
		if i+1 < len(e.Expanders) {
			next = e.Expanders[i+1]
		}
		x.Attach(prev, next)
	}
}

// Exec returns a channel of functions to run on the audio thread before the
// next block. Sends block when 64 functions are already waiting.
func (e *Engine) Exec() chan<- func() {
	return e.exec
}

// Process runs frames frames. src may be nil.
func (e *Engine) Process(frames int, src EventSource) {
	e.drainExec()
	for f := 0; f < frames; f++ {
		if src != nil {
			for {
				ev, ok := src.NextEvent(f)
				if !ok {
					break
				}
				if e.Notes.Apply(ev.Message.Bytes()) {
					e.PortsChanged()
				}
			}
		}
		args := recorder.ProcessArgs{SampleTime: e.sampleTime, Frame: e.frame}
		for i := range e.Expanders {
			e.Expanders[i].Process(args, &e.CCInputs[i])
		}
		e.Recorder.Process(args, &e.Inputs)
		e.frame++
	}
}

func (e *Engine) drainExec() {
	for {
		select {
		case f := <-e.exec:
			f()
		default:
			return
		}
	}
}

// PortsChanged tells every module that cables were connected or
// disconnected.
func (e *Engine) PortsChanged() {
	e.Recorder.PortsChanged()
	for _, x := range e.Expanders {
		x.PortsChanged()
	}
}

// Detach removes the expanders from index i on. The expanders before i stay
// chained to the recorder.
func (e *Engine) Detach(i int) {
	i = max(min(i, len(e.Expanders)), 0)
	for _, x := range e.Expanders[i:] {
		x.Attach(nil, nil)
	}
	e.Expanders = e.Expanders[:i]
	e.CCInputs = e.CCInputs[:i]
	e.chain()
}

// SetTempo drives the tempo input so that the clock runs at bpm; a
// non-positive bpm disconnects it and the configured tempo applies.
func (e *Engine) SetTempo(bpm float64) {
	if bpm <= 0 {
		e.Inputs.Tempo.Disconnect()
		return
	}
	e.Inputs.Tempo.Set(float32(math.Log2(bpm / midirec.DefaultTempo)))
}

// SetRunGate drives the run input.
func (e *Engine) SetRunGate(high bool) {
	var v float32
	if high {
		v = 10
	}
	e.Inputs.Run.Set(v)
}

// Port returns the port of a recorder column, or of a CC expander column
// when expander >= 0. It returns nil for indices out of range.
func (e *Engine) Port(expander, track, column int) *recorder.Port {
	if track < 0 || track >= midirec.NumTracks || column < 0 {
		return nil
	}
	if expander < 0 {
		if column >= recorder.NumColumns {
			return nil
		}
		return &e.Inputs.Tracks[track][column]
	}
	if expander >= len(e.CCInputs) || column >= midirec.NumCCColumns {
		return nil
	}
	return &e.CCInputs[expander].Tracks[track][column]
}

// Frame returns the number of frames processed so far.
func (e *Engine) Frame() int64 {
	return e.frame
}
