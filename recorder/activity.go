package recorder

import (
	"sync/atomic"

	"github.com/chinenual/midirec"
)

// ActivityCache remembers which tracks have any input connected, so the
// audio thread does not scan every port of every track each sample. The host
// calls Invalidate whenever cables are connected or disconnected; the whole
// table is recomputed on the next query.
type ActivityCache struct {
	columns int
	dirty   atomic.Bool
	active  [midirec.NumTracks]bool
}

func NewActivityCache(columns int) *ActivityCache {
	c := &ActivityCache{columns: columns}
	c.dirty.Store(true)
	return c
}

// Invalidate marks the cache dirty. It is safe to call from any goroutine.
func (c *ActivityCache) Invalidate() {
	c.dirty.Store(true)
}

// Active reports whether any of the track's inputs is connected. Only the
// audio thread calls Active.
func (c *ActivityCache) Active(track int, ports PortSet) bool {
	if c.dirty.Swap(false) {
		for t := range c.active {
			c.active[t] = false
			for col := 0; col < c.columns; col++ {
				if ports.Connected(t, col) {
					c.active[t] = true
					break
				}
			}
		}
	}
	return c.active[track]
}
