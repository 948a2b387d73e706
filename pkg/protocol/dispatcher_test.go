package protocol

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markity/reactor-echo/pkg/stats"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want Command
	}{
		{"", NotACommand},
		{"hello", NotACommand},
		{" /time", NotACommand},
		{"time", NotACommand},
		{"/time", Time},
		{"/time\n", Time},
		{"/timestamp", Time},
		{"/stats", Stats},
		{"/statsxyz", Stats},
		{"/shutdown", Shutdown},
		{"/shutdown now", Shutdown},
		{"/Time", Unknown},
		{"/STATS", Unknown},
		{"/bogus", Unknown},
		{"/", Unknown},
		{"/shut", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.msg)))
		})
	}
}

func TestDispatchEcho(t *testing.T) {
	d := NewDispatcher(&stats.Counters{})

	for _, msg := range []string{"hello", "hello world\n", "a/b", " /time", "\x00\x01binary"} {
		resp, cmd := d.Dispatch([]byte(msg))
		assert.Equal(t, NotACommand, cmd)
		assert.Equal(t, msg, string(resp))
	}
}

func TestDispatchTime(t *testing.T) {
	d := NewDispatcher(&stats.Counters{})

	resp, cmd := d.Dispatch([]byte("/time"))
	require.Equal(t, Time, cmd)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), string(resp))

	_, err := time.ParseInLocation(TimeLayout, string(resp), time.Local)
	assert.NoError(t, err)
}

func TestDispatchTimeUsesClock(t *testing.T) {
	d := NewDispatcher(&stats.Counters{})
	d.SetClock(func() time.Time {
		return time.Date(2024, 2, 29, 23, 59, 58, 0, time.Local)
	})

	resp, _ := d.Dispatch([]byte("/time"))
	assert.Equal(t, "2024-02-29 23:59:58", string(resp))
}

func TestDispatchStats(t *testing.T) {
	var c stats.Counters
	c.Accepted()
	c.Accepted()
	c.Accepted()
	c.Closed()
	d := NewDispatcher(&c)

	resp, cmd := d.Dispatch([]byte("/stats"))
	assert.Equal(t, Stats, cmd)
	assert.Equal(t, "total_accepted=3, current_open=2", string(resp))
}

func TestDispatchShutdownAndUnknown(t *testing.T) {
	var c stats.Counters
	d := NewDispatcher(&c)

	resp, cmd := d.Dispatch([]byte("/shutdown"))
	assert.Equal(t, Shutdown, cmd)
	assert.Equal(t, ShutdownReply, string(resp))

	resp, cmd = d.Dispatch([]byte("/bogus"))
	assert.Equal(t, Unknown, cmd)
	assert.Equal(t, "Unknown command", string(resp))
	assert.Equal(t, stats.Snapshot{}, c.Snapshot())
}
