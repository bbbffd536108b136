package recorder_test

import (
	"testing"

	"github.com/chinenual/midirec/recorder"
)

func TestRateLimiterFrequency(t *testing.T) {
	for _, rate := range []int{44100, 48000, 96000} {
		l := recorder.NewRateLimiter(recorder.RateLimitHz)
		fired := 0
		for i := 0; i < rate*10; i++ {
			if l.Process(1 / float64(rate)) {
				fired++
			}
		}
		if fired < 10*recorder.RateLimitHz-1 || fired > 10*recorder.RateLimitHz {
			t.Errorf("%v Hz: fired %v times in 10 seconds", rate, fired)
		}
	}
}

func TestSchmittTrigger(t *testing.T) {
	var s recorder.SchmittTrigger
	steps := []struct {
		v    float32
		rose bool
		high bool
	}{
		{0.5, false, false},
		{1.0, true, true},
		{0.5, false, true},
		{5, false, true},
		{0.1, false, false},
		{0.9, false, false},
		{2, true, true},
	}
	for i, step := range steps {
		if rose := s.Process(step.v); rose != step.rose || s.High() != step.high {
			t.Fatalf("step %v (%v V): rose %v high %v, expected %v %v", i, step.v, rose, s.High(), step.rose, step.high)
		}
	}
}
