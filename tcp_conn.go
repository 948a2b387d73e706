package reactorecho

import (
	"errors"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/markity/reactor-echo/pkg/buffer"
	eventloop "github.com/markity/reactor-echo/pkg/event_loop"
)

type tcpConnectionState int

const (
	Open    tcpConnectionState = 1
	Closing tcpConnectionState = 2
)

func (s tcpConnectionState) String() string {
	switch s {
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	}
	return "Unknown"
}

type TCPConnection interface {
	GetRemoteAddrPort() netip.AddrPort
	GetFD() int
	IsOpen() bool
}

// only used in the loop goroutine
type tcpConnection struct {
	state tcpConnectionState

	loop eventloop.EventLoop

	socketChannel eventloop.Channel

	messageCallback messageCallbackFunc
	closeCallback   closeCallbackFunc

	// one read returns at most this many bytes, one read is one message
	maxMessageSize int

	remoteAddrPort netip.AddrPort

	inputBuffer buffer.Buffer

	// the read or socket error that closed the connection, nil for an orderly close
	lastErr error
}

func newConnection(loop eventloop.EventLoop, sockFD int, remoteAddrPort netip.AddrPort, maxMessageSize int) *tcpConnection {
	channel := eventloop.NewChannel(sockFD)
	c := &tcpConnection{
		state:           Open,
		loop:            loop,
		socketChannel:   channel,
		messageCallback: defaultMessageCallback,
		closeCallback:   defaultCloseCallback,
		maxMessageSize:  maxMessageSize,
		remoteAddrPort:  remoteAddrPort,
		inputBuffer:     buffer.NewBuffer(),
	}
	channel.SetReadCallback(c.handleRead)
	channel.SetCloseCallback(c.handleClose)
	channel.SetErrorCallback(c.handleError)
	// edge triggered, handleRead drains until EAGAIN
	channel.SetEvent(eventloop.ReadableEvent | eventloop.EdgeTriggeredEvent)

	return c
}

func (conn *tcpConnection) setMessageCallback(f messageCallbackFunc) {
	conn.messageCallback = f
}

func (conn *tcpConnection) setCloseCallback(f closeCallbackFunc) {
	conn.closeCallback = f
}

// establishConn registers the socket with the poller, on failure the caller
// still owns the fd
func (conn *tcpConnection) establishConn() error {
	if err := conn.loop.UpdateChannelInLoopGoroutine(conn.socketChannel); err != nil {
		conn.state = Closing
		return err
	}
	return nil
}

func (conn *tcpConnection) GetRemoteAddrPort() netip.AddrPort {
	return conn.remoteAddrPort
}

func (conn *tcpConnection) GetFD() int {
	return conn.socketChannel.GetFD()
}

func (conn *tcpConnection) IsOpen() bool {
	return conn.state == Open
}

// Send writes bs with a single write(2), a short or failed write is not retried
func (conn *tcpConnection) Send(bs []byte) error {
	if conn.state != Open {
		return unix.EBADF
	}

	_, err := unix.Write(conn.socketChannel.GetFD(), bs)
	return err
}

func (conn *tcpConnection) handleRead() {
	for conn.state == Open {
		n, err := conn.inputBuffer.ReadFD(conn.socketChannel.GetFD(), conn.maxMessageSize)
		switch {
		case err == nil && n > 0:
			conn.messageCallback(conn, conn.inputBuffer.RetrieveAsBytes())
		case err == nil:
			// n为0意味对面已经close write或close total了, 此时直接关闭连接
			conn.handleClose()
			return
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EINTR):
		default:
			conn.lastErr = err
			conn.handleClose()
			return
		}
	}
}

// handleError closes the connection with the pending socket error, a wakeup
// without one falls back to a read so nothing is lost
func (conn *tcpConnection) handleError() {
	errno, err := unix.GetsockoptInt(conn.socketChannel.GetFD(), unix.SOL_SOCKET, unix.SO_ERROR)
	switch {
	case err != nil:
		conn.lastErr = err
	case errno != 0:
		conn.lastErr = unix.Errno(errno)
	default:
		conn.handleRead()
		return
	}

	conn.handleClose()
}

// handleClose deregisters and closes the socket, only the first call does it
func (conn *tcpConnection) handleClose() {
	if conn.state != Open {
		return
	}

	conn.state = Closing
	conn.socketChannel.DisableAll()
	_ = conn.loop.RemoveChannelInLoopGoroutine(conn.socketChannel)
	unix.Close(conn.socketChannel.GetFD())
	conn.closeCallback(conn)
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	}
	return netip.AddrPort{}
}
