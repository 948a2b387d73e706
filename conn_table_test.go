package reactorecho

import (
	"testing"

	"github.com/stretchr/testify/assert"

	eventloop "github.com/markity/reactor-echo/pkg/event_loop"
	"github.com/markity/reactor-echo/pkg/stats"
)

func fakeConnection(fd int) *tcpConnection {
	return &tcpConnection{
		state:         Open,
		socketChannel: eventloop.NewChannel(fd),
	}
}

func TestConnTableCounters(t *testing.T) {
	var counters stats.Counters
	table := newConnTable(&counters)

	a, b, c := fakeConnection(10), fakeConnection(11), fakeConnection(12)
	table.add(a)
	table.add(b)
	table.add(c)
	assert.Equal(t, 3, table.len())

	assert.True(t, table.remove(b))
	assert.False(t, table.remove(b))
	assert.Equal(t, stats.Snapshot{TotalAccepted: 3, CurrentOpen: 2}, counters.Snapshot())
	assert.Equal(t, 2, table.len())

	assert.True(t, table.remove(a))
	assert.True(t, table.remove(c))
	assert.Equal(t, 0, table.len())
	assert.EqualValues(t, 0, counters.CurrentOpen())
}

func TestConnTableIgnoresStaleEntry(t *testing.T) {
	var counters stats.Counters
	table := newConnTable(&counters)

	old := fakeConnection(10)
	table.add(old)
	assert.True(t, table.remove(old))

	// the fd number got reused by a newer connection
	fresh := fakeConnection(10)
	table.add(fresh)
	assert.False(t, table.remove(old))
	assert.EqualValues(t, 1, counters.CurrentOpen())
	assert.EqualValues(t, 2, counters.TotalAccepted())
}
