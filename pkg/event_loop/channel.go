package eventloop

type ReactorEvent int

const (
	// do not care about anything
	NoneEvent     ReactorEvent = 0
	ReadableEvent ReactorEvent = 0b1

	// interest only, asks the poller for edge-triggered notification
	EdgeTriggeredEvent ReactorEvent = 0b10

	// returned only, never part of the interest set
	ErrorEvent ReactorEvent = 0b100
	CloseEvent ReactorEvent = 0b1000
)

// channel index states, see poller.UpdateChannel
const (
	indexNew     = -1
	indexAdded   = 1
	indexDeleted = 2
)

type channel struct {
	//  file descripor, each channel is used only to handle one fd
	fd int

	// events that we are interested, if we want to do something when the fd
	// is readable, we need to set events to ReadableEvent and SetReadCallback
	events ReactorEvent

	// events returned by the poller for the current batch
	revents ReactorEvent

	// used by poller, if index is indexNew, the poller knows it is a new channel
	index int

	// callbacks
	readCallback  func()
	closeCallback func()
	errorCallback func()
}

// some setters and getters

func (c *channel) GetEvent() ReactorEvent {
	return c.events
}

func (c *channel) SetEvent(e ReactorEvent) {
	c.events = e
}

func (c *channel) GetRevent() ReactorEvent {
	return c.revents
}

func (c *channel) SetRevent(e ReactorEvent) {
	c.revents = e
}

func (c *channel) GetIndex() int {
	return c.index
}

func (c *channel) SetIndex(i int) {
	c.index = i
}

func (c *channel) GetFD() int {
	return c.fd
}

func (c *channel) SetReadCallback(f func()) {
	c.readCallback = f
}

func (c *channel) SetCloseCallback(f func()) {
	c.closeCallback = f
}

func (c *channel) SetErrorCallback(f func()) {
	c.errorCallback = f
}

func (c *channel) IsNoneEvent() bool {
	return c.events&ReadableEvent == 0
}

// the return value tells whether the interest set changed
func (c *channel) EnableRead() bool {
	if c.events&ReadableEvent != 0 {
		return false
	}

	c.events |= ReadableEvent
	return true
}

func (c *channel) DisableAll() {
	c.events &= EdgeTriggeredEvent
}

// handle all returned events for the channel
func (c *channel) HandleEvent() {
	revents := c.revents
	c.revents = 0

	// hang up with nothing left to read, readers would only see EOF anyway
	if revents&CloseEvent != 0 && revents&ReadableEvent == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
			return
		}
	}

	if revents&ErrorEvent != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
			return
		}
	}

	if revents&(ReadableEvent|CloseEvent|ErrorEvent) != 0 {
		if c.readCallback != nil {
			c.readCallback()
		}
	}
}

// create a new channel
func NewChannel(fd int) Channel {
	return &channel{
		index: indexNew,
		fd:    fd,
	}
}

// Channel is used to manage a fd events, and handle callbacks
type Channel interface {
	GetEvent() ReactorEvent
	SetEvent(ReactorEvent)

	GetRevent() ReactorEvent
	SetRevent(ReactorEvent)

	GetIndex() int
	SetIndex(int)

	GetFD() int

	SetReadCallback(func())
	SetCloseCallback(func())
	SetErrorCallback(func())

	HandleEvent()

	IsNoneEvent() bool
	EnableRead() bool
	DisableAll()
}
