package recorder

import (
	"math"

	"github.com/chinenual/midirec"
)

// Clock converts elapsed sample time into ticks. Instead of adding a tick
// delta every sample, it remembers the time and the unrounded tick of the
// last tempo change and computes the current tick from that snapshot, so
// floating point error does not compound over a long recording.
type Clock struct {
	tick      int64   // public, rounded tick
	unrounded float64 // tick before rounding
	elapsed   float64 // seconds since reset
	snapTime  float64 // elapsed at the last tempo change
	snapTick  float64 // unrounded tick at the last tempo change
	tempo     float64 // BPM
}

func NewClock(bpm float64) *Clock {
	c := &Clock{}
	c.Reset(bpm)
	return c
}

// Reset moves the origin of the timeline to now: the next Advance returns
// tick 0. A non-positive bpm resets to the default tempo.
func (c *Clock) Reset(bpm float64) {
	if !(bpm > 0) {
		bpm = midirec.DefaultTempo
	}
	*c = Clock{tempo: bpm}
}

// Advance returns the tick of the current sample and then moves the clock
// forward by sampleDuration seconds. If bpm differs from the current tempo,
// the snapshot is taken at the current time under the old tempo before the
// new tempo applies, and tempoChanged is true. Non-positive tempos are
// ignored. The returned tick never decreases.
func (c *Clock) Advance(sampleDuration, bpm float64) (tick int64, tempoChanged bool) {
	if bpm > 0 && bpm != c.tempo {
		c.snapTick = c.ticksAt(c.elapsed)
		c.snapTime = c.elapsed
		c.tempo = bpm
		tempoChanged = true
	}
	c.unrounded = c.ticksAt(c.elapsed)
	if t := int64(math.Round(c.unrounded)); t > c.tick {
		c.tick = t
	}
	c.elapsed += sampleDuration
	return c.tick, tempoChanged
}

func (c *Clock) ticksAt(t float64) float64 {
	return c.snapTick + (t-c.snapTime)*c.tempo/60*midirec.TicksPerQuarter
}

func (c *Clock) Tick() int64      { return c.tick }
func (c *Clock) Tempo() float64   { return c.tempo }
func (c *Clock) Elapsed() float64 { return c.elapsed }
