package eventloop

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 64

type poller struct {
	// epoll file descriptor, -1 after Close
	epollFD int

	// key is fd, value is Channel
	channelMap map[int]Channel

	// reused between Poll calls, its length bounds one batch
	events []unix.EpollEvent
}

// create a new poller, poller contains a epollfd, maxEvents bounds the number
// of channels returned by one Poll
func NewPoller(maxEvents int) (Poller, error) {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll create")
	}

	return &poller{
		epollFD:    epfd,
		channelMap: make(map[int]Channel),
		events:     make([]unix.EpollEvent, maxEvents),
	}, nil
}

type Poller interface {
	// wait on epoll_wait and returns the active Channels in the order the
	// kernel reported them, negative timeout blocks until something is ready
	Poll(timeout time.Duration) ([]Channel, error)

	// UpdateChannel registers a new channel or applies its changed interest set
	UpdateChannel(Channel) error

	// RemoveChannel removes a fd from epollfd
	RemoveChannel(Channel) error

	// GetChannelCount get current epoll wait fd nums
	GetChannelCount() int

	// Close closes the epollfd, the second call returns nil
	Close() error
}

func (p *poller) Poll(timeout time.Duration) ([]Channel, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}

	var (
		n   int
		err error
	)
	for {
		n, err = unix.EpollWait(p.epollFD, p.events, msec)
		if err == nil {
			break
		}
		// interrupted by a signal, not a failure
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return nil, errors.Wrap(err, "epoll wait")
	}

	active := make([]Channel, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channelMap[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetRevent(toReactorEvent(ev.Events))
		active = append(active, ch)
	}

	return active, nil
}

func (p *poller) UpdateChannel(c Channel) error {
	switch c.GetIndex() {
	case indexNew, indexDeleted:
		if c.IsNoneEvent() {
			return nil
		}
		if err := p.ctl(unix.EPOLL_CTL_ADD, c); err != nil {
			return err
		}
		p.channelMap[c.GetFD()] = c
		c.SetIndex(indexAdded)
	case indexAdded:
		if c.IsNoneEvent() {
			if err := p.ctl(unix.EPOLL_CTL_DEL, c); err != nil {
				return err
			}
			c.SetIndex(indexDeleted)
			return nil
		}
		return p.ctl(unix.EPOLL_CTL_MOD, c)
	}

	return nil
}

func (p *poller) RemoveChannel(c Channel) error {
	if c.GetIndex() == indexNew {
		return errors.New("remove non-exist channel")
	}

	delete(p.channelMap, c.GetFD())
	if c.GetIndex() == indexAdded {
		c.SetIndex(indexNew)
		return p.ctl(unix.EPOLL_CTL_DEL, c)
	}

	c.SetIndex(indexNew)
	return nil
}

func (p *poller) GetChannelCount() int {
	return len(p.channelMap)
}

func (p *poller) Close() error {
	if p.epollFD < 0 {
		return nil
	}

	fd := p.epollFD
	p.epollFD = -1
	p.channelMap = make(map[int]Channel)
	return unix.Close(fd)
}

func (p *poller) ctl(op int, c Channel) error {
	var ev unix.EpollEvent
	if op != unix.EPOLL_CTL_DEL {
		ev.Events = toEpollEvents(c.GetEvent())
	}
	ev.Fd = int32(c.GetFD())

	if err := unix.EpollCtl(p.epollFD, op, c.GetFD(), &ev); err != nil {
		return errors.Wrapf(err, "epoll ctl op=%d fd=%d", op, c.GetFD())
	}
	return nil
}

func toEpollEvents(e ReactorEvent) uint32 {
	var events uint32
	if e&ReadableEvent != 0 {
		events |= unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	}
	if e&EdgeTriggeredEvent != 0 {
		events |= unix.EPOLLET
	}
	return events
}

func toReactorEvent(events uint32) ReactorEvent {
	var e ReactorEvent
	if events&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		e |= ReadableEvent
	}
	if events&unix.EPOLLERR != 0 {
		e |= ErrorEvent
	}
	if events&unix.EPOLLHUP != 0 {
		e |= CloseEvent
	}
	return e
}
