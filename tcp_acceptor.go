package reactorecho

import (
	"net/netip"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	eventloop "github.com/markity/reactor-echo/pkg/event_loop"
)

type newConnectionCallback func(socketfd int, peerAddr netip.AddrPort)

type tcpAcceptor struct {
	// event loop
	loop eventloop.EventLoop

	// be used to prevent double listen
	listening bool

	// set by Close, the fd is released once
	closed bool

	// listen on all interfaces at this port
	port int

	// listen socket fd channel
	socketChannel eventloop.Channel

	// new connection call back
	newConnectionCallback newConnectionCallback

	// syscall.Listen param, see man 2 listen()
	// The backlog argument defines the maximum length to which the queue of pending connections for sockfd may grow.
	listenBacklog int
}

// newTCPAcceptor creates the non-blocking listening socket with SO_REUSEADDR,
// nothing is left open when it fails
func newTCPAcceptor(loop eventloop.EventLoop, port int, listenBacklog int) (*tcpAcceptor, error) {
	socketFD, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create tcp socket")
	}

	err = unix.SetsockoptInt(socketFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err != nil {
		unix.Close(socketFD)
		return nil, errors.Wrap(err, "set SO_REUSEADDR")
	}

	c := eventloop.NewChannel(socketFD)
	acc := &tcpAcceptor{
		loop:                  loop,
		port:                  port,
		socketChannel:         c,
		newConnectionCallback: defaultNewConnectionCallback,
		listenBacklog:         listenBacklog,
	}
	c.SetReadCallback(acc.HandleRead)

	return acc, nil
}

// Listen binds and listens, the fd is not registered with the loop until
// Register is called
func (ac *tcpAcceptor) Listen() error {
	if ac.listening {
		panic("already listening")
	}

	err := unix.Bind(ac.socketChannel.GetFD(), &unix.SockaddrInet4{Port: ac.port})
	if err != nil {
		return errors.Wrapf(err, "bind tcp port %d", ac.port)
	}

	err = unix.Listen(ac.socketChannel.GetFD(), ac.listenBacklog)
	if err != nil {
		return errors.Wrapf(err, "listen tcp port %d", ac.port)
	}

	ac.listening = true
	return nil
}

// Register watches the listening socket for readability, level triggered
func (ac *tcpAcceptor) Register() error {
	ac.socketChannel.EnableRead()
	if err := ac.loop.UpdateChannelInLoopGoroutine(ac.socketChannel); err != nil {
		return errors.Wrap(err, "register tcp listener")
	}
	return nil
}

// HandleRead accepts one pending connection, anything that goes wrong is left
// to the next readiness notification
func (ac *tcpAcceptor) HandleRead() {
	nfd, sa, err := unix.Accept4(ac.socketChannel.GetFD(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return
	}

	ac.newConnectionCallback(nfd, sockaddrToAddrPort(sa))
}

func (ac *tcpAcceptor) SetNewConnectionCallback(cb newConnectionCallback) {
	ac.newConnectionCallback = cb
}

func (ac *tcpAcceptor) Close() error {
	if ac.closed {
		return nil
	}

	ac.closed = true
	if ac.socketChannel.GetIndex() > 0 {
		_ = ac.loop.RemoveChannelInLoopGoroutine(ac.socketChannel)
	}
	return unix.Close(ac.socketChannel.GetFD())
}

func defaultNewConnectionCallback(socketfd int, peerAddr netip.AddrPort) {
	unix.Close(socketfd)
}
