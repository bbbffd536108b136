package recorder

import (
	"sync/atomic"

	"github.com/chinenual/midirec"
)

// CCExpander records up to NumCCColumns control changes per track and hands
// them to the recorder it is chained to. It only produces while that
// recorder is recording, and only on its rate limiter ticks. A value is sent
// when it differs from the last one sent in the same recording.
type CCExpander struct {
	link    *ExpanderLink
	cache   *ActivityCache
	limiter RateLimiter
	config  atomic.Pointer[[midirec.NumCCColumns]midirec.CCConfig]
	broker  *Broker

	prev, next Neighbor

	connected    bool
	wasRecording bool
	last         [midirec.NumTracks][midirec.NumCCColumns]int
	scratch      [midirec.NumTracks]float32
}

const CCExpanderSlug = "MIDIRecorderCC"

func NewCCExpander(cfg [midirec.NumCCColumns]midirec.CCConfig, broker *Broker) *CCExpander {
	e := &CCExpander{
		link:    NewExpanderLink(),
		cache:   NewActivityCache(midirec.NumCCColumns),
		limiter: NewRateLimiter(RateLimitHz),
		broker:  broker,
	}
	e.SetConfig(cfg)
	e.forget()
	return e
}

func (e *CCExpander) Slug() string { return CCExpanderSlug }

// Attach places the expander in a chain: prev is the neighbor on the
// recorder side and next the one on the far side. Call it from the audio
// thread, between samples.
func (e *CCExpander) Attach(prev, next Neighbor) {
	e.prev, e.next = prev, next
}

func (e *CCExpander) Prev() Neighbor             { return e.prev }
func (e *CCExpander) Next() Neighbor             { return e.next }
func (e *CCExpander) Outgoing() *ExpanderMessage { return e.link.Consumer() }

// SetConfig replaces the column configuration. It is safe to call from any
// goroutine; the audio thread picks it up on its next rate limiter tick.
func (e *CCExpander) SetConfig(cfg [midirec.NumCCColumns]midirec.CCConfig) {
	e.config.Store(&cfg)
}

func (e *CCExpander) Config() [midirec.NumCCColumns]midirec.CCConfig {
	return *e.config.Load()
}

// PortsChanged is called by the host when a cable is connected or
// disconnected.
func (e *CCExpander) PortsChanged() {
	e.cache.Invalidate()
}

// Reset restores the default CC assignments.
func (e *CCExpander) Reset() {
	e.SetConfig(midirec.DefaultCCConfig())
	e.cache.Invalidate()
	e.forget()
}

func (e *CCExpander) forget() {
	for t := range e.last {
		for c := range e.last[t] {
			e.last[t][c] = -1
		}
	}
}

// Process runs once per sample, before the recorder processes the same
// sample, so the recorder reads this sample's messages.
func (e *CCExpander) Process(args ProcessArgs, in *CCInputs) {
	triggered := e.limiter.Process(args.SampleTime)
	master := findRecorder(e.prev)
	if connected := master != nil; connected != e.connected {
		e.connected = connected
		if connected {
			e.broker.Post(Alert{Name: AlertExpanderConnected, Message: "CC expander connected to a recorder"})
		} else {
			e.broker.Post(Alert{Name: AlertExpanderDisconnected, Message: "CC expander disconnected from its recorder"})
		}
	}
	recording := master != nil && master.IsRecording()
	if recording && !e.wasRecording {
		// a new recording: send every current value on this sample
		e.forget()
		e.limiter.Reset()
		triggered = true
	}
	e.wasRecording = recording
	msg := e.link.Producer()
	for t := range msg.Pending {
		msg.Pending[t] = msg.Pending[t][:0]
		msg.Active[t] = e.cache.Active(t, in)
	}
	if recording && triggered {
		e.sample(in, msg)
	}
	e.link.Flip()
}

func (e *CCExpander) sample(in *CCInputs, msg *ExpanderMessage) {
	cfg := e.config.Load()
	for col := range cfg {
		cc := cfg[col]
		max := midirec.Max7Bit
		if cc.Is14Bit {
			max = midirec.Max14Bit
		}
		for t := range e.scratch {
			e.scratch[t] = in.Tracks[t][col].Voltage(0)
		}
		cc.Range.Range().ScaleInplace(e.scratch[:], max)
		for t := range e.scratch {
			if !msg.Active[t] || !in.Tracks[t][col].Connected {
				continue
			}
			v := int(e.scratch[t])
			if v == e.last[t][col] {
				continue
			}
			e.last[t][col] = v
			if !cc.Is14Bit {
				e.push(msg, t, midirec.ControlChange(0, uint8(cc.CC), uint8(v)))
				continue
			}
			msb, lsb := midirec.Split14Bit(v)
			e.push(msg, t, midirec.ControlChange(0, uint8(cc.CC), uint8(msb)))
			// controllers above 95 have no LSB partner; send the MSB only
			if cc.CC+midirec.LSBOffsetCC <= midirec.MaxController {
				e.push(msg, t, midirec.ControlChange(0, uint8(cc.CC+midirec.LSBOffsetCC), uint8(lsb)))
			}
		}
	}
}

func (e *CCExpander) push(msg *ExpanderMessage, t int, m midirec.Message) {
	if !msg.Push(t, m) {
		e.broker.Post(Alert{Name: AlertPendingFull, Priority: Warning, Track: t})
	}
}
