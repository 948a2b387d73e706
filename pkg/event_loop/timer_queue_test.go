package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTimerQueueExpiredOrder(t *testing.T) {
	tq, err := newTimerQueue()
	require.NoError(t, err)
	defer unix.Close(tq.timerChannel.GetFD())

	base := time.Now()
	var order []int
	tq.AddTimer(base.Add(2*time.Second), 0, func() { order = append(order, 3) })
	tq.AddTimer(base, 0, func() { order = append(order, 1) })
	tq.AddTimer(base, time.Second, func() { order = append(order, 2) })

	for _, e := range tq.getExpired(base) {
		e.onTimer()
	}
	assert.Equal(t, []int{1, 2}, order)

	// the repeating one moved one interval ahead
	assert.Equal(t, 2, tq.Len())
	for _, e := range tq.getExpired(base.Add(2 * time.Second)) {
		e.onTimer()
	}
	assert.Equal(t, []int{1, 2, 2, 3, 2}, order)
	assert.Equal(t, 1, tq.Len())
}

func TestTimerQueueCancel(t *testing.T) {
	tq, err := newTimerQueue()
	require.NoError(t, err)
	defer unix.Close(tq.timerChannel.GetFD())

	id := tq.AddTimer(time.Now(), 0, func() {})
	assert.True(t, tq.CancelTimer(id))
	assert.False(t, tq.CancelTimer(id))
	assert.Empty(t, tq.getExpired(time.Now()))
}
