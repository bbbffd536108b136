package recorder_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chinenual/midirec/recorder"
)

const sampleRate = 48000

func TestClockFirstTickIsZero(t *testing.T) {
	c := recorder.NewClock(120)
	if tick, _ := c.Advance(1.0/sampleRate, 120); tick != 0 {
		t.Fatalf("first tick should be 0, got %v", tick)
	}
}

func TestClockHalfSecondAt120(t *testing.T) {
	c := recorder.NewClock(120)
	var tick int64
	for i := 0; i <= sampleRate/2; i++ {
		tick, _ = c.Advance(1.0/sampleRate, 120)
	}
	if tick != 960 {
		t.Fatalf("tick after 0.5 s at 120 BPM should be 960, got %v", tick)
	}
	// the tick is read before the time advances
	if e := c.Elapsed(); math.Abs(e-(0.5+1.0/sampleRate)) > 1e-9 {
		t.Fatalf("elapsed after %v samples should be %v s, got %v", sampleRate/2+1, 0.5+1.0/sampleRate, e)
	}
}

func TestClockMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c := recorder.NewClock(120)
	bpm := 120.0
	var last int64
	for i := 0; i < 200000; i++ {
		if rnd.Intn(1000) == 0 {
			bpm = 20 + rnd.Float64()*300
		}
		tick, _ := c.Advance(1.0/sampleRate, bpm)
		if tick < last {
			t.Fatalf("tick went backwards at sample %v: %v < %v", i, tick, last)
		}
		last = tick
	}
}

func TestClockNoDrift(t *testing.T) {
	const k = 10 * 60 * sampleRate // ten minutes
	many := recorder.NewClock(133)
	for i := 0; i < k; i++ {
		many.Advance(1.0/sampleRate, 133)
	}
	tickMany, _ := many.Advance(0, 133)
	once := recorder.NewClock(133)
	once.Advance(float64(k)/sampleRate, 133)
	tickOnce, _ := once.Advance(0, 133)
	if d := tickMany - tickOnce; d < -1 || d > 1 {
		t.Fatalf("per-sample clock drifted: %v vs %v", tickMany, tickOnce)
	}
}

func TestClockTempoChange(t *testing.T) {
	c := recorder.NewClock(120)
	for i := 0; i < sampleRate; i++ {
		if _, changed := c.Advance(1.0/sampleRate, 120); changed {
			t.Fatalf("tempo did not change, but Advance reported a change")
		}
	}
	tick, changed := c.Advance(1.0/sampleRate, 60)
	if !changed {
		t.Fatalf("expected a tempo change")
	}
	if tick != 1920 {
		t.Fatalf("tick at the tempo change should be 1920, got %v", tick)
	}
	for i := 1; i < sampleRate; i++ {
		tick, _ = c.Advance(1.0/sampleRate, 60)
	}
	tick, _ = c.Advance(1.0/sampleRate, 60)
	if tick != 1920+960 {
		t.Fatalf("one second at 60 BPM after the change should add 960 ticks, got %v", tick)
	}
}

func TestClockIgnoresInvalidTempo(t *testing.T) {
	c := recorder.NewClock(120)
	for _, bpm := range []float64{0, -10, math.NaN()} {
		if _, changed := c.Advance(1.0/sampleRate, bpm); changed {
			t.Fatalf("tempo %v should be ignored", bpm)
		}
	}
	if c.Tempo() != 120 {
		t.Fatalf("tempo should have stayed 120, got %v", c.Tempo())
	}
	c.Reset(-1)
	if c.Tempo() <= 0 {
		t.Fatalf("reset with an invalid tempo should fall back to a positive tempo")
	}
}

func TestClockResetIdempotent(t *testing.T) {
	a := recorder.NewClock(90)
	b := recorder.NewClock(90)
	for i := 0; i < 1000; i++ {
		a.Advance(1.0/sampleRate, 100)
		b.Advance(1.0/sampleRate, 140)
	}
	a.Reset(110)
	b.Reset(110)
	b.Reset(110)
	if *a != *b {
		t.Fatalf("reset twice differs from reset once: %+v vs %+v", *a, *b)
	}
	if tick, _ := b.Advance(1.0/sampleRate, 110); tick != 0 {
		t.Fatalf("first tick after reset should be 0, got %v", tick)
	}
}
