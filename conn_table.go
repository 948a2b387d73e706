package reactorecho

import (
	"github.com/markity/reactor-echo/pkg/stats"
)

// connTable maps an open client fd to its connection, only used in the loop
// goroutine, the counters are readable from anywhere
type connTable struct {
	conns    map[int]*tcpConnection
	counters *stats.Counters
}

func newConnTable(counters *stats.Counters) *connTable {
	return &connTable{
		conns:    make(map[int]*tcpConnection),
		counters: counters,
	}
}

func (t *connTable) add(conn *tcpConnection) {
	t.conns[conn.GetFD()] = conn
	t.counters.Accepted()
}

// remove reports false when conn is not the entry recorded for its fd, the
// counter is decremented once per added connection
func (t *connTable) remove(conn *tcpConnection) bool {
	cur, ok := t.conns[conn.GetFD()]
	if !ok || cur != conn {
		return false
	}

	delete(t.conns, conn.GetFD())
	t.counters.Closed()
	return true
}

func (t *connTable) len() int {
	return len(t.conns)
}

// closeAll releases every remaining socket without writing anything to it
func (t *connTable) closeAll() {
	for _, conn := range t.conns {
		conn.handleClose()
	}
}
