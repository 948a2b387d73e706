package eventloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/petermattis/goid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type eventloop struct {
	// Poller is epoll poller
	poller Poller

	// eventfd, be used to wake up epoll_wait syscall
	wakeupEventChannel Channel

	// be used to manage timers, timerQueue contains a timerfd
	timerQueue *timerQueue

	// mu protects functors, closed and exited
	mu       sync.Mutex
	functors *queue.Queue
	// closed is set by Close, no more wakeup writes after that
	closed bool
	// exited is set when Loop returns, RunInLoop then runs functors inline
	exited bool

	// be used to stop eventloop, make eventloop.Loop returns
	running int64

	// gid is goroutine id, be set when NewEventLoop
	gid int64

	doOnLoop func(EventLoop)
}

// create an EventLoop, it's Loop function can be only triggered
// at the goroutine which creates the eventloop, maxEvents bounds one poll batch
func NewEventLoop(maxEvents int) (EventLoop, error) {
	p, err := NewPoller(maxEvents)
	if err != nil {
		return nil, err
	}

	// the eventfd is used to wake up epoll_wait, when RunInLoop(f) is called from
	// another goroutine while the loop goroutine is blocked in epoll_wait
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		p.Close()
		return nil, errors.Wrap(err, "eventfd")
	}

	c := NewChannel(efd)
	c.SetEvent(ReadableEvent)
	c.SetReadCallback(func() {
		_, _ = unix.Read(efd, make([]byte, 8))
	})

	tq, err := newTimerQueue()
	if err != nil {
		unix.Close(efd)
		p.Close()
		return nil, err
	}

	ev := &eventloop{
		poller:             p,
		wakeupEventChannel: c,
		timerQueue:         tq,
		functors:           queue.New(),
		gid:                goid.Get(),
	}

	// register both channels into epoll
	if err := p.UpdateChannel(c); err != nil {
		ev.Close()
		return nil, err
	}
	if err := p.UpdateChannel(tq.timerChannel); err != nil {
		ev.Close()
		return nil, err
	}

	return ev, nil
}

// EventLoop interface describe the functions designed for the users
type EventLoop interface {
	// Loop() returns after Stop() is called, or with the error that made
	// epoll_wait fail
	Loop() error

	// queue a functor into eventloop, the function will be called latter in loop goroutine
	RunInLoop(func())

	// stop eventloop and make Loop() return
	Stop()

	// create a timer, it will be triggered at specified timepoint
	RunAt(triggerAt time.Time, interval time.Duration, f func()) int

	// cancel a timer, if it is removed successfully, returns true
	// if the timer is already executed or the id is invalid, returns false
	CancelTimer(id int) bool

	// get current channel count in this loop
	GetChannelCount() int

	// reports whether the caller is on the goroutine that owns the loop
	IsInLoopGoroutine() bool

	// reports whether Loop is between its start and its return
	IsRunning() bool

	// when a channel is changed, it is necessary to notify epollfd
	UpdateChannelInLoopGoroutine(Channel) error

	// remove a channel from eventloop, the fd will also be remove from epollfd
	RemoveChannelInLoopGoroutine(Channel) error

	// close epollfd, eventfd and timerfd, safe to call more than once
	Close() error

	// be called on the loop goroutine right before the first poll
	DoOnLoop(func(EventLoop))
}

// the function can be only triggered at eventloop goroutine
func (ev *eventloop) UpdateChannelInLoopGoroutine(c Channel) error {
	return ev.poller.UpdateChannel(c)
}

// the function can be only triggered at eventloop goroutine
func (ev *eventloop) RemoveChannelInLoopGoroutine(c Channel) error {
	return ev.poller.RemoveChannel(c)
}

func (ev *eventloop) DoOnLoop(f func(EventLoop)) {
	ev.doOnLoop = f
}

func (ev *eventloop) IsInLoopGoroutine() bool {
	return ev.gid == goid.Get()
}

func (ev *eventloop) IsRunning() bool {
	return atomic.LoadInt64(&ev.running) == 1
}

// start event loop, if Stop() is not called and epoll_wait keeps working,
// Loop() will never return
func (ev *eventloop) Loop() error {
	// check gid, Loop() can be only called at the goroutine which creates it
	if !ev.IsInLoopGoroutine() {
		panic("loop must be run at the goroutine created at")
	}

	// atomic operation, make running switch 0 to 1
	if !atomic.CompareAndSwapInt64(&ev.running, 0, 1) {
		panic("it is already running? don't run it again")
	}
	defer ev.exit()

	if ev.doOnLoop != nil {
		ev.doOnLoop(ev)
	}

	// check running, if running is 0, Loop should returns
	for ev.IsRunning() {
		// wait epoll_wait returns, and get the active event channels
		channels, err := ev.poller.Poll(-1)
		if err != nil {
			atomic.StoreInt64(&ev.running, 0)
			return err
		}

		// execute functions for each channel, a handler may stop the loop and
		// close descriptors the rest of the batch refers to
		for _, v := range channels {
			if !ev.IsRunning() {
				break
			}
			v.HandleEvent()
		}

		ev.doFunctors()
	}

	return nil
}

// exit marks the loop as exited and runs what was queued meanwhile
func (ev *eventloop) exit() {
	atomic.StoreInt64(&ev.running, 0)

	ev.mu.Lock()
	ev.exited = true
	ev.mu.Unlock()

	ev.doFunctors()
}

func (ev *eventloop) doFunctors() {
	// get all functors
	ev.mu.Lock()
	f := make([]func(), 0, ev.functors.Length())
	for ev.functors.Length() != 0 {
		f = append(f, ev.functors.Remove().(func()))
	}
	ev.mu.Unlock()

	// execute all functors
	for _, v := range f {
		v()
	}
}

// queue a functor into a loop, func will be called in the loop goroutine later
func (ev *eventloop) RunInLoop(f func()) {
	// if it is in eventloop goroutine, just execute it right now
	if ev.IsInLoopGoroutine() {
		f()
		return
	}

	ev.mu.Lock()
	if ev.exited {
		// nothing will drain the queue any more
		ev.mu.Unlock()
		f()
		return
	}
	ev.functors.Add(f)
	// make sure epoll_wait returns
	ev.wakeup()
	ev.mu.Unlock()
}

// stop a eventloop
func (ev *eventloop) Stop() {
	ev.RunInLoop(func() {
		// atomic operation is better than lock
		atomic.StoreInt64(&ev.running, 0)
	})
}

func (ev *eventloop) GetChannelCount() int {
	if ev.IsInLoopGoroutine() {
		return ev.poller.GetChannelCount()
	}

	c := make(chan int, 1)
	ev.RunInLoop(func() {
		c <- ev.poller.GetChannelCount()
	})
	return <-c
}

// setup a timer, returns its id, it can be cancelled, see CancelTimer(id int)
func (ev *eventloop) RunAt(triggerAt time.Time, interval time.Duration, f func()) int {
	// ev.timerQueue can noly be operated in loop goroutine, we need to use RunInLoop
	// and get its return value by golang channel
	if ev.IsInLoopGoroutine() {
		return ev.timerQueue.AddTimer(triggerAt, interval, f)
	}

	c := make(chan int, 1)
	ev.RunInLoop(func() {
		c <- ev.timerQueue.AddTimer(triggerAt, interval, f)
	})
	return <-c
}

// cancel a timer
func (ev *eventloop) CancelTimer(id int) bool {
	if ev.IsInLoopGoroutine() {
		return ev.timerQueue.CancelTimer(id)
	}

	c := make(chan bool, 1)
	ev.RunInLoop(func() {
		c <- ev.timerQueue.CancelTimer(id)
	})
	return <-c
}

// Close releases every descriptor the loop owns, only the first call does it
func (ev *eventloop) Close() error {
	ev.mu.Lock()
	if ev.closed {
		ev.mu.Unlock()
		return nil
	}
	ev.closed = true
	ev.mu.Unlock()

	atomic.StoreInt64(&ev.running, 0)

	// every descriptor is closed, the first failure is reported
	var firstErr error
	if err := unix.Close(ev.wakeupEventChannel.GetFD()); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close eventfd")
	}
	if err := unix.Close(ev.timerQueue.timerChannel.GetFD()); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close timerfd")
	}
	if err := ev.poller.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close epollfd")
	}
	return firstErr
}

// wakeup writes something into eventfd, so that epoll_wait can return,
// must be called with ev.mu held
func (ev *eventloop) wakeup() {
	if ev.closed {
		return
	}

	// if the content of eventfd is not consumed yet, write may return EAGAIN,
	// the loop is going to wake up anyway
	_, _ = unix.Write(ev.wakeupEventChannel.GetFD(), []byte{1, 0, 0, 0, 0, 0, 0, 0})
}
