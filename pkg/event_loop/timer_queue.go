package eventloop

import (
	"container/heap"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// timer entry
type timerHeapEntry struct {
	// id will be used to cancel timer
	timerId int
	// next trigger timepoint
	TimeStamp time.Time
	// callback function
	onTimer func()
	// if interval is 0, only trigger once
	interval time.Duration
}

// implement container.Heap interface
type timerHeap []timerHeapEntry

func (th *timerHeap) Len() int {
	return len(*th)
}

func (th *timerHeap) Less(i, j int) bool {
	if (*th)[i].TimeStamp.Equal((*th)[j].TimeStamp) {
		return (*th)[i].timerId < (*th)[j].timerId
	}

	return (*th)[i].TimeStamp.Before((*th)[j].TimeStamp)
}

func (th *timerHeap) Swap(i, j int) {
	(*th)[i], (*th)[j] = (*th)[j], (*th)[i]
}

func (th *timerHeap) Push(x interface{}) {
	*th = append(*th, x.(timerHeapEntry))
}

func (th *timerHeap) Pop() interface{} {
	old := *th
	n := len(old)
	x := old[n-1]
	*th = old[0 : n-1]
	return x
}

type timerQueue struct {
	// timerfd's channel
	timerChannel Channel
	// each timer has an unique index, use counter
	timerIdCounter int
	// timer array, but uses container.Heap interface to insert
	heap timerHeap
}

func newTimerQueue() (*timerQueue, error) {
	timerfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "timerfd create")
	}

	ch := NewChannel(timerfd)
	ch.SetEvent(ReadableEvent)
	tq := &timerQueue{
		timerChannel: ch,
		heap:         make(timerHeap, 0),
	}
	heap.Init(&tq.heap)

	// read callback consumes content in timerfd and call getExpired() to execute callbacks
	ch.SetReadCallback(func() {
		_, err := unix.Read(timerfd, make([]byte, 8))
		if err != nil && !errors.Is(err, unix.EAGAIN) {
			return
		}

		for _, v := range tq.getExpired(time.Now()) {
			v.onTimer()
		}
	})

	return tq, nil
}

// create a new timer, returns its id
func (tq *timerQueue) AddTimer(triggerAt time.Time, interval time.Duration, f func()) int {
	tq.timerIdCounter++
	id := tq.timerIdCounter
	heap.Push(&tq.heap, timerHeapEntry{
		timerId:   id,
		TimeStamp: triggerAt,
		onTimer:   f,
		interval:  interval,
	})

	tq.resetTimerfd(time.Now())
	return id
}

// cancel timer by its id
func (tq *timerQueue) CancelTimer(timerId int) bool {
	for i, v := range tq.heap {
		if v.timerId == timerId {
			heap.Remove(&tq.heap, i)
			tq.resetTimerfd(time.Now())
			return true
		}
	}
	return false
}

func (tq *timerQueue) Len() int {
	return tq.heap.Len()
}

// get expired entries, repeating ones are pushed back with their next timepoint
func (tq *timerQueue) getExpired(now time.Time) []timerHeapEntry {
	te := make([]timerHeapEntry, 0)
	for tq.heap.Len() != 0 {
		minOne := tq.heap[0]
		if minOne.TimeStamp.After(now) {
			break
		}

		heap.Pop(&tq.heap)
		te = append(te, minOne)
		if minOne.interval != 0 {
			minOne.TimeStamp = minOne.TimeStamp.Add(minOne.interval)
			heap.Push(&tq.heap, minOne)
		}
	}

	tq.resetTimerfd(now)
	return te
}

// arm the timerfd for the earliest entry, or disarm it when the heap is empty
func (tq *timerQueue) resetTimerfd(now time.Time) {
	var sp unix.ItimerSpec
	if tq.heap.Len() != 0 {
		d := tq.heap[0].TimeStamp.Sub(now)
		// a zero it_value disarms the timer, already expired entries fire asap
		if d <= 0 {
			d = time.Microsecond
		}
		sp.Value = unix.NsecToTimespec(d.Nanoseconds())
	}

	// relative timepoint, see timerfd_settime(2)
	_ = unix.TimerfdSettime(tq.timerChannel.GetFD(), 0, &sp, nil)
}
