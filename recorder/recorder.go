package recorder

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/chinenual/midirec"
)

const (
	RecorderSlug = "MIDIRecorder"

	// DefaultVelocity is used for note ons when the velocity input of a
	// track is not connected.
	DefaultVelocity = 100
)

var ErrNothingRecorded = errors.New("no track received any events")

type (
	// Recorder samples the inputs of NumTracks tracks on the audio thread,
	// turns them into MIDI events stamped with the tick of the tempo clock
	// and hands them to an EventChannel. A worker goroutine owned by the
	// channel feeds the Sink and writes the file when the recording stops.
	//
	// Process, SetNeighbor and Reset belong to the audio thread. SetRun,
	// ToggleRun, SetConfig, PortsChanged, State, IsRecording, LastFile and
	// Wait are safe from any goroutine.
	Recorder struct {
		cfg     midirec.Config
		latest  atomic.Pointer[midirec.Config]
		dirty   atomic.Bool
		sink    midirec.Sink
		broker  *Broker
		channel *EventChannel
		cache   *ActivityCache
		clock   Clock
		limiter RateLimiter

		runTrigger SchmittTrigger
		button     atomic.Bool
		prevRun    bool
		state      State
		published  atomic.Int32
		forceCC    bool
		stalls     int64

		neighbor Neighbor
		tracks   [midirec.NumTracks]trackState
		active   [midirec.NumTracks]bool
		counts   [midirec.NumTracks]int

		session  session
		finish   func()
		lastFile atomic.Pointer[FileResult]
	}

	// FileResult describes the outcome of the most recent recording.
	FileResult struct {
		Path   string
		Tracks int // tracks kept in the file
		Err    error
	}

	trackState struct {
		gates      [midirec.MaxChannels]SchmittTrigger
		keys       [midirec.MaxChannels]uint8
		aftertouch [midirec.MaxChannels]int
		bend       [midirec.MaxChannels]int
		mod        [midirec.MaxChannels]int
	}

	// session is what the worker needs to finish a recording; it is copied
	// before the channel is closed, so the audio thread can start a new
	// recording while the worker still writes the previous one.
	session struct {
		cfg    midirec.Config
		counts [midirec.NumTracks]int
	}
)

// New returns an idle recorder. broker may be nil, in which case alerts are
// discarded.
func New(cfg midirec.Config, sink midirec.Sink, broker *Broker) *Recorder {
	return NewWithCapacity(cfg, sink, broker, DefaultSlotCapacity)
}

// NewWithCapacity is New with a custom per-track slot capacity for the event
// channel.
func NewWithCapacity(cfg midirec.Config, sink midirec.Sink, broker *Broker, capacity int) *Recorder {
	r := &Recorder{
		cfg:     cfg,
		sink:    sink,
		broker:  broker,
		channel: NewEventChannel(sink, capacity),
		cache:   NewActivityCache(NumColumns),
		limiter: NewRateLimiter(RateLimitHz),
	}
	r.latest.Store(&cfg)
	r.clock.Reset(cfg.DefaultTempoOrFallback())
	r.finish = r.writeFile
	return r
}

func (r *Recorder) Slug() string { return RecorderSlug }

// IsRecording reports whether the recorder was recording at the end of the
// last processed sample. Expanders poll it to decide whether to produce.
func (r *Recorder) IsRecording() bool {
	return State(r.published.Load()) == Recording
}

func (r *Recorder) State() State {
	return State(r.published.Load())
}

// SetNeighbor sets the module adjacent to the recorder, the first link of
// the expander chain. nil means nothing is attached.
func (r *Recorder) SetNeighbor(n Neighbor) {
	r.neighbor = n
}

// SetRun sets the state of the run button. The run request is the button
// or'ed with the run gate input.
func (r *Recorder) SetRun(on bool) {
	r.button.Store(on)
}

// ToggleRun flips the run button and returns its new state.
func (r *Recorder) ToggleRun() bool {
	for {
		old := r.button.Load()
		if r.button.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// PortsChanged is called by the host when a cable is connected or
// disconnected.
func (r *Recorder) PortsChanged() {
	r.cache.Invalidate()
}

// SetConfig replaces the configuration. A running recording keeps the one it
// started with; the new configuration takes effect at the next start.
func (r *Recorder) SetConfig(cfg midirec.Config) {
	r.latest.Store(&cfg)
	r.dirty.Store(true)
}

// Config returns the configuration most recently set.
func (r *Recorder) Config() midirec.Config {
	return *r.latest.Load()
}

// LastFile returns the outcome of the most recently finished recording, or
// nil if none has finished yet.
func (r *Recorder) LastFile() *FileResult {
	return r.lastFile.Load()
}

// Wait blocks until the worker of the last recording has written its file.
func (r *Recorder) Wait() {
	r.channel.Wait()
}

// Stalls returns how many times the audio thread had to wait for the worker
// in the current or last recording.
func (r *Recorder) Stalls() int64 {
	return r.channel.Stalls()
}

// Reset stops any recording and restores the default configuration, keeping
// the destination path.
func (r *Recorder) Reset() {
	if r.state != Idle {
		r.stop()
	}
	cfg := midirec.DefaultConfig()
	cfg.Path = r.Config().Path
	r.SetConfig(cfg)
	r.button.Store(false)
	r.runTrigger.Reset()
	r.prevRun = false
	r.cache.Invalidate()
	r.published.Store(int32(Idle))
}

// Process handles one sample. It never blocks, except when the worker has
// fallen three slots behind, and never allocates while recording.
func (r *Recorder) Process(args ProcessArgs, in *Inputs) {
	if r.state == Idle && r.dirty.Swap(false) {
		r.cfg = *r.latest.Load()
	}
	bpm := r.tempo(in)
	r.runTrigger.Process(in.Run.Voltage(0))
	run := r.runTrigger.High() || r.button.Load()
	// while the worker still writes the previous take, a start is held
	// back and retried on the next sample
	if run != r.prevRun && !(run && r.channel.Busy()) {
		r.prevRun = run
		switch {
		case run && r.state == Idle:
			r.start(bpm)
		case !run && r.state != Idle:
			r.stop()
		}
	}
	switch r.state {
	case Armed:
		if r.firstNote(in) {
			r.begin(bpm)
			r.record(args, in, bpm)
		}
	case Recording:
		r.record(args, in, bpm)
	}
	r.published.Store(int32(r.state))
}

// tempo reads the tempo input as 2^V * 120 BPM, the convention of clock
// modules; without a cable the configured tempo is used.
func (r *Recorder) tempo(in *Inputs) float64 {
	if !in.Tempo.Connected {
		return r.cfg.DefaultTempoOrFallback()
	}
	return midirec.ClampTempo(midirec.DefaultTempo * math.Exp2(float64(in.Tempo.Voltage(0))))
}

func (r *Recorder) start(bpm float64) {
	if r.cfg.Path == "" {
		r.broker.Post(Alert{Name: AlertNoPath, Priority: Warning})
		return
	}
	for t := range r.tracks {
		r.tracks[t].reset()
	}
	r.counts = [midirec.NumTracks]int{}
	r.stalls = 0
	r.channel.Start(r.finish)
	if r.cfg.AlignToFirstNote {
		r.state = Armed
		r.broker.Post(Alert{Name: AlertArmed, Value: bpm})
		return
	}
	r.begin(bpm)
}

// begin makes the current sample tick zero and marks the tempo on every
// track.
func (r *Recorder) begin(bpm float64) {
	r.clock.Reset(bpm)
	r.limiter.Reset()
	r.forceCC = true
	for t := 0; t < midirec.NumTracks; t++ {
		r.channel.Append(midirec.Event{Track: t, Kind: midirec.TempoEvent, Tempo: r.clock.Tempo()})
	}
	r.state = Recording
	r.broker.Post(Alert{Name: AlertRecording, Value: r.clock.Tempo()})
}

// firstNote reports whether a gate of an active track rises in this sample.
// The triggers are left untouched; record processes the same edge again.
func (r *Recorder) firstNote(in *Inputs) bool {
	for t := range r.tracks {
		if !r.cache.Active(t, in) {
			continue
		}
		gate := &in.Tracks[t][GateColumn]
		for c := 0; c < gate.NumChannels(); c++ {
			if !r.tracks[t].gates[c].High() && gate.Poly(c) >= gateHighVoltage {
				return true
			}
		}
	}
	return false
}

func (r *Recorder) record(args ProcessArgs, in *Inputs, bpm float64) {
	tick, tempoChanged := r.clock.Advance(args.SampleTime, bpm)
	ccTick := r.limiter.Process(args.SampleTime) || r.forceCC
	r.forceCC = false

	for t := range r.active {
		r.active[t] = r.cache.Active(t, in)
	}
	walkChain(r.neighbor, func(e Expander) bool {
		msg := e.Outgoing()
		for t := range r.active {
			r.active[t] = r.active[t] || msg.Active[t]
		}
		return true
	})

	if tempoChanged {
		for t, a := range r.active {
			if a {
				r.channel.Append(midirec.Event{Track: t, Tick: tick, Kind: midirec.TempoEvent, Tempo: r.clock.Tempo()})
			}
		}
	}
	for t, a := range r.active {
		if a {
			r.sampleTrack(t, tick, &in.Tracks[t], ccTick)
		}
	}
	walkChain(r.neighbor, func(e Expander) bool {
		msg := e.Outgoing()
		for t := range msg.Pending {
			for _, m := range msg.Pending[t] {
				r.emit(t, tick, m)
			}
		}
		return true
	})

	if s := r.channel.Stalls(); s > r.stalls {
		r.stalls = s
		r.broker.Post(Alert{Name: AlertStalled, Priority: Warning, Value: float64(s)})
	}
}

func (r *Recorder) sampleTrack(t int, tick int64, ports *[NumColumns]Port, ccTick bool) {
	st := &r.tracks[t]
	pitch, gate, vel := &ports[PitchColumn], &ports[GateColumn], &ports[VelocityColumn]
	for c := 0; c < midirec.MaxChannels; c++ {
		g := &st.gates[c]
		was := g.High()
		if g.Process(gate.Poly(c)) {
			st.keys[c] = pitchToKey(pitch.Voltage(c))
			st.aftertouch[c] = -1
			r.emit(t, tick, midirec.NoteOn(uint8(c), st.keys[c], r.velocity(vel, c)))
		} else if was && !g.High() {
			r.emit(t, tick, midirec.NoteOff(uint8(c), st.keys[c]))
		}
	}
	if !ccTick {
		return
	}

	if at := &ports[AftertouchColumn]; at.Connected {
		rng := r.cfg.AftertouchRange.Range()
		for c := 0; c < midirec.MaxChannels; c++ {
			if !st.gates[c].High() {
				continue
			}
			v := rng.To7Bit(at.Voltage(c))
			if v != st.aftertouch[c] {
				st.aftertouch[c] = v
				r.emit(t, tick, midirec.PolyAftertouch(uint8(c), st.keys[c], uint8(v)))
			}
		}
	}
	if pb := &ports[PitchBendColumn]; pb.Connected {
		rng := r.cfg.PitchBendRange.Range()
		for c := 0; c < pb.NumChannels(); c++ {
			v := rng.To14Bit(pb.Poly(c))
			if v != st.bend[c] {
				st.bend[c] = v
				r.emit(t, tick, midirec.PitchBend(uint8(c), uint16(v)))
			}
		}
	}
	if mw := &ports[ModWheelColumn]; mw.Connected {
		rng := r.cfg.ModWheelRange.Range()
		for c := 0; c < mw.NumChannels(); c++ {
			if r.cfg.ModWheel14Bit {
				v := rng.To14Bit(mw.Poly(c))
				if v == st.mod[c] {
					continue
				}
				st.mod[c] = v
				msb, lsb := midirec.Split14Bit(v)
				r.emit(t, tick, midirec.ControlChange(uint8(c), midirec.ModWheelCC, uint8(msb)))
				r.emit(t, tick, midirec.ControlChange(uint8(c), midirec.ModWheelCC+midirec.LSBOffsetCC, uint8(lsb)))
				continue
			}
			v := rng.To7Bit(mw.Poly(c))
			if v != st.mod[c] {
				st.mod[c] = v
				r.emit(t, tick, midirec.ControlChange(uint8(c), midirec.ModWheelCC, uint8(v)))
			}
		}
	}
}

func (r *Recorder) velocity(p *Port, ch int) uint8 {
	if !p.Connected {
		return DefaultVelocity
	}
	return uint8(max(r.cfg.VelocityRange.Range().To7Bit(p.Voltage(ch)), 1))
}

// pitchToKey maps 1 V/octave pitch to a MIDI key, 0 V being C4 (key 60).
func pitchToKey(v float32) uint8 {
	k := math.Round(float64(v)*12) + 60
	if !(k >= 0) {
		return 0
	}
	if k > midirec.MaxController {
		return midirec.MaxController
	}
	return uint8(k)
}

func (r *Recorder) emit(track int, tick int64, msg midirec.Message) {
	r.channel.Append(midirec.Event{Track: track, Tick: tick, Message: msg})
	r.counts[track]++
}

// stop releases held notes, hands the session to the worker and goes idle.
// The file is written by the worker, off the audio thread.
func (r *Recorder) stop() {
	tick := r.clock.Tick()
	if r.state == Recording {
		for t := range r.tracks {
			st := &r.tracks[t]
			for c := range st.gates {
				if st.gates[c].High() {
					st.gates[c].Reset()
					r.emit(t, tick, midirec.NoteOff(uint8(c), st.keys[c]))
				}
			}
		}
	}
	r.session = session{cfg: r.cfg, counts: r.counts}
	r.state = Idle
	r.channel.Close()
	r.broker.Post(Alert{Name: AlertStopped, Value: float64(tick)})
}

// writeFile runs on the worker goroutine after the last event was drained.
func (r *Recorder) writeFile() {
	s := r.session
	res := &FileResult{}
	// Deleting shifts the following tracks down, so go from the end.
	for t := midirec.NumTracks - 1; t >= 0; t-- {
		if s.counts[t] > 0 {
			res.Tracks++
			continue
		}
		r.sink.DeleteTrack(t)
	}
	if res.Tracks == 0 {
		res.Err = ErrNothingRecorded
		r.lastFile.Store(res)
		r.broker.Post(Alert{Name: AlertNothingRecorded, Message: "nothing recorded, no file written"})
		return
	}
	path, err := OutputPath(s.cfg.Path, s.cfg.AutoIncrement)
	if err == nil {
		res.Path = path
		err = r.sink.Write(path)
	}
	if err != nil {
		res.Err = fmt.Errorf("could not write recording: %w", err)
		r.lastFile.Store(res)
		r.broker.Post(Alert{Name: AlertWriteFailed, Priority: Error, Message: res.Err.Error()})
		return
	}
	r.lastFile.Store(res)
	r.broker.Post(Alert{Name: AlertWritten, Value: float64(res.Tracks), Message: path})
}

func (s *trackState) reset() {
	for c := range s.gates {
		s.gates[c].Reset()
		s.keys[c] = 0
		s.aftertouch[c] = -1
		s.bend[c] = -1
		s.mod[c] = -1
	}
}
