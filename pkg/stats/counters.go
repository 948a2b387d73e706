// Package stats holds the connection counters a running server exposes.
package stats

import (
	"sync/atomic"
)

// Counters are mutated by the loop goroutine only, and read from anywhere.
type Counters struct {
	// increments only
	totalAccepted atomic.Int64
	// +1 on accept, -1 on close
	currentOpen atomic.Int64
}

func (c *Counters) Accepted() {
	c.totalAccepted.Add(1)
	c.currentOpen.Add(1)
}

// Closed must be called exactly once per accepted connection.
func (c *Counters) Closed() {
	if c.currentOpen.Add(-1) < 0 {
		panic("stats: more closes than accepts")
	}
}

func (c *Counters) TotalAccepted() int64 {
	return c.totalAccepted.Load()
}

func (c *Counters) CurrentOpen() int64 {
	return c.currentOpen.Load()
}

type Snapshot struct {
	TotalAccepted int64
	CurrentOpen   int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		TotalAccepted: c.TotalAccepted(),
		CurrentOpen:   c.CurrentOpen(),
	}
}
