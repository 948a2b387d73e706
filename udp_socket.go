package reactorecho

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	eventloop "github.com/markity/reactor-echo/pkg/event_loop"
)

type datagramCallback func(from unix.Sockaddr, msg []byte)

// udpSocket is the stateless datagram side, every datagram is answered to
// its sender with one sendto
type udpSocket struct {
	loop eventloop.EventLoop

	// set by Close, the fd is released once
	closed bool

	port int

	socketChannel eventloop.Channel

	// one datagram at most, the kernel drops what does not fit
	recvBuf []byte

	datagramCallback datagramCallback
}

// newUDPSocket creates the non-blocking datagram socket and binds it on all
// interfaces, nothing is left open when it fails
func newUDPSocket(loop eventloop.EventLoop, port int, maxMessageSize int) (*udpSocket, error) {
	socketFD, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create udp socket")
	}

	err = unix.Bind(socketFD, &unix.SockaddrInet4{Port: port})
	if err != nil {
		unix.Close(socketFD)
		return nil, errors.Wrapf(err, "bind udp port %d", port)
	}

	c := eventloop.NewChannel(socketFD)
	us := &udpSocket{
		loop:             loop,
		port:             port,
		socketChannel:    c,
		recvBuf:          make([]byte, maxMessageSize),
		datagramCallback: defaultDatagramCallback,
	}
	c.SetReadCallback(us.HandleRead)

	return us, nil
}

// Register watches the socket for readability, level triggered
func (us *udpSocket) Register() error {
	us.socketChannel.EnableRead()
	if err := us.loop.UpdateChannelInLoopGoroutine(us.socketChannel); err != nil {
		return errors.Wrap(err, "register udp socket")
	}
	return nil
}

// HandleRead receives one datagram, pending ones keep the socket readable
func (us *udpSocket) HandleRead() {
	n, from, err := unix.Recvfrom(us.socketChannel.GetFD(), us.recvBuf, 0)
	if err != nil || n <= 0 || from == nil {
		return
	}

	msg := make([]byte, n)
	copy(msg, us.recvBuf[:n])
	us.datagramCallback(from, msg)
}

// SendTo answers one datagram, a failed send is not retried
func (us *udpSocket) SendTo(bs []byte, to unix.Sockaddr) error {
	if us.closed {
		return unix.EBADF
	}
	return unix.Sendto(us.socketChannel.GetFD(), bs, 0, to)
}

func (us *udpSocket) SetDatagramCallback(cb datagramCallback) {
	us.datagramCallback = cb
}

func (us *udpSocket) Close() error {
	if us.closed {
		return nil
	}

	us.closed = true
	if us.socketChannel.GetIndex() > 0 {
		_ = us.loop.RemoveChannelInLoopGoroutine(us.socketChannel)
	}
	return unix.Close(us.socketChannel.GetFD())
}

func defaultDatagramCallback(from unix.Sockaddr, msg []byte) {
	// just do nothing
}
