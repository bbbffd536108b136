package recorder_test

import (
	"testing"

	"github.com/chinenual/midirec/recorder"
)

type countingPorts struct {
	recorder.CCInputs
	calls int
}

func (c *countingPorts) Connected(track, column int) bool {
	c.calls++
	return c.CCInputs.Connected(track, column)
}

func TestActivityCacheRecomputesOnlyWhenDirty(t *testing.T) {
	ports := &countingPorts{}
	ports.Tracks[2][1].Set(1)
	c := recorder.NewActivityCache(2)
	if !c.Active(2, ports) || c.Active(0, ports) {
		t.Fatalf("expected only track 2 to be active")
	}
	calls := ports.calls
	for i := 0; i < 100; i++ {
		c.Active(i%10, ports)
	}
	if ports.calls != calls {
		t.Fatalf("a clean cache should not look at the ports")
	}
	ports.Tracks[2][1].Disconnect()
	if !c.Active(2, ports) {
		t.Fatalf("the cache should keep its state until invalidated")
	}
	c.Invalidate()
	if c.Active(2, ports) {
		t.Fatalf("expected track 2 to be inactive after invalidation")
	}
}
