// Package protocol turns one inbound message into its response: text is
// echoed, slash-prefixed text is resolved against a small command table.
package protocol

import (
	"fmt"
	"time"
)

const TimeLayout = "2006-01-02 15:04:05"

// StatsReader is what the stats command reports on.
type StatsReader interface {
	TotalAccepted() int64
	CurrentOpen() int64
}

type Dispatcher struct {
	stats StatsReader
	now   func() time.Time
}

func NewDispatcher(stats StatsReader) *Dispatcher {
	return &Dispatcher{
		stats: stats,
		now:   time.Now,
	}
}

// SetClock replaces time.Now, the time command reports its local time.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch returns the response for msg and the command it carried. The
// caller owns acting on Shutdown, after the response has been sent. The
// echo response aliases msg.
func (d *Dispatcher) Dispatch(msg []byte) ([]byte, Command) {
	entry, cmd := lookup(msg)
	switch cmd {
	case NotACommand:
		return msg, cmd
	case Unknown:
		return []byte(UnknownReply), cmd
	}

	return entry.reply(d), cmd
}

func (d *Dispatcher) timeReply() []byte {
	return []byte(d.now().Local().Format(TimeLayout))
}

func (d *Dispatcher) statsReply() []byte {
	return []byte(fmt.Sprintf("total_accepted=%d, current_open=%d",
		d.stats.TotalAccepted(), d.stats.CurrentOpen()))
}
