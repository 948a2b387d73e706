package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAcceptAndClose(t *testing.T) {
	var c Counters
	for i := 0; i < 3; i++ {
		c.Accepted()
	}
	c.Closed()

	assert.Equal(t, Snapshot{TotalAccepted: 3, CurrentOpen: 2}, c.Snapshot())

	c.Closed()
	c.Closed()
	assert.EqualValues(t, 3, c.TotalAccepted())
	assert.EqualValues(t, 0, c.CurrentOpen())
}

func TestCountersCloseBelowZeroPanics(t *testing.T) {
	var c Counters
	assert.Panics(t, c.Closed)
}
