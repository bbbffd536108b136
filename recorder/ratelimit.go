package recorder

// RateLimitHz is the ceiling frequency for continuous controllers. MIDI runs
// at 31250 baud, about 1041 three byte messages per second; 200 Hz leaves
// room for several controllers changing at once.
const RateLimitHz = 200

// RateLimiter fires at a fixed period, independent of the sample rate.
type RateLimiter struct {
	Period float64 // seconds
	timer  float64
}

func NewRateLimiter(hz float64) RateLimiter {
	return RateLimiter{Period: 1 / hz}
}

// Process advances the timer by dt seconds and reports whether the period
// elapsed. The remainder is carried over, so the average rate is exact.
func (r *RateLimiter) Process(dt float64) bool {
	r.timer += dt
	if r.timer >= r.Period {
		r.timer -= r.Period
		return true
	}
	return false
}

func (r *RateLimiter) Reset() {
	r.timer = 0
}

// SchmittTrigger turns a voltage into a boolean with hysteresis: it goes
// high at or above 1 V and low at or below 0.1 V.
type SchmittTrigger struct {
	high bool
}

const (
	gateHighVoltage = 1.0
	gateLowVoltage  = 0.1
)

// Process updates the state and reports whether it just went high.
func (s *SchmittTrigger) Process(v float32) (rose bool) {
	switch {
	case !s.high && v >= gateHighVoltage:
		s.high = true
		return true
	case s.high && v <= gateLowVoltage:
		s.high = false
	}
	return false
}

func (s *SchmittTrigger) High() bool { return s.high }

func (s *SchmittTrigger) Reset() { s.high = false }
