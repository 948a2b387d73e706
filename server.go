package reactorecho

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	eventloop "github.com/markity/reactor-echo/pkg/event_loop"
	"github.com/markity/reactor-echo/pkg/protocol"
	"github.com/markity/reactor-echo/pkg/stats"
)

// Server answers stream and datagram clients on one port from a single
// event loop. Initialize and Run must be called on the same goroutine, that
// goroutine owns the loop.
type Server struct {
	cfg    Config
	logger *zap.Logger

	loop     eventloop.EventLoop
	acceptor *tcpAcceptor
	datagram *udpSocket

	conns      *connTable
	counters   stats.Counters
	dispatcher *protocol.Dispatcher

	// set by the first stop, guards every close
	stopped atomic.Bool

	connectedCallback    ConnectedCallbackFunc
	disconnectedCallback DisConnectedCallbackFunc
}

func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:                  cfg,
		logger:               logger,
		connectedCallback:    defaultConnectedCallback,
		disconnectedCallback: defaultDisConnectedCallback,
	}
	s.conns = newConnTable(&s.counters)
	s.dispatcher = protocol.NewDispatcher(&s.counters)
	return s
}

func (s *Server) SetConnectionCallback(f ConnectedCallbackFunc) {
	s.connectedCallback = f
}

func (s *Server) SetDisConnectionCallback(f DisConnectedCallbackFunc) {
	s.disconnectedCallback = f
}

// Initialize creates the loop, the listening socket and the datagram socket
// and registers both sockets. On error everything created so far is closed.
func (s *Server) Initialize() (err error) {
	if s.loop != nil {
		panic("already initialized")
	}

	if err := s.cfg.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}

	var (
		loop     eventloop.EventLoop
		acceptor *tcpAcceptor
		datagram *udpSocket
	)
	defer func() {
		if err == nil {
			return
		}
		if acceptor != nil {
			acceptor.Close()
		}
		if datagram != nil {
			datagram.Close()
		}
		if loop != nil {
			loop.Close()
		}
	}()

	loop, err = eventloop.NewEventLoop(s.cfg.MaxEvents)
	if err != nil {
		return errors.Wrap(err, "create event loop")
	}

	acceptor, err = newTCPAcceptor(loop, s.cfg.Port, s.cfg.ListenBacklog)
	if err != nil {
		return err
	}
	if err = acceptor.Listen(); err != nil {
		return err
	}

	datagram, err = newUDPSocket(loop, s.cfg.Port, s.cfg.MaxMessageSize)
	if err != nil {
		return err
	}

	if err = acceptor.Register(); err != nil {
		return err
	}
	if err = datagram.Register(); err != nil {
		return err
	}

	acceptor.SetNewConnectionCallback(s.onNewConnection)
	datagram.SetDatagramCallback(s.onDatagram)
	s.loop, s.acceptor, s.datagram = loop, acceptor, datagram

	s.logger.Info("server initialized", zap.Int("port", s.cfg.Port))
	return nil
}

// Run blocks in the event loop until Stop, or until waiting for readiness
// fails, in which case the server is stopped and the error returned.
func (s *Server) Run() error {
	if s.loop == nil {
		return errors.New("server not initialized")
	}
	if s.stopped.Load() {
		return nil
	}

	s.loop.DoOnLoop(s.onLoopStart)
	if err := s.loop.Loop(); err != nil {
		s.logger.Error("event loop failed", zap.Error(err))
		s.Stop()
		return errors.Wrap(err, "event loop")
	}
	return nil
}

// Stop may be called any number of times from any goroutine, descriptors are
// closed by the first call only. From outside the loop goroutine it takes
// effect once the loop picks it up, or at once when the loop has exited.
func (s *Server) Stop() {
	if s.loop == nil {
		return
	}

	s.loop.RunInLoop(s.stop)
}

// Stats can be read from any goroutine.
func (s *Server) Stats() stats.Snapshot {
	return s.counters.Snapshot()
}

func (s *Server) stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.loop.Stop()
	if err := s.acceptor.Close(); err != nil {
		s.logger.Warn("close tcp listener", zap.Error(err))
	}
	if err := s.datagram.Close(); err != nil {
		s.logger.Warn("close udp socket", zap.Error(err))
	}
	// remaining clients get no notification
	s.conns.closeAll()
	if err := s.loop.Close(); err != nil {
		s.logger.Warn("close event loop", zap.Error(err))
	}

	s.logger.Info("server stopped",
		zap.Int64("total_accepted", s.counters.TotalAccepted()))
}

func (s *Server) onNewConnection(socketfd int, peerAddr netip.AddrPort) {
	conn := newConnection(s.loop, socketfd, peerAddr, s.cfg.MaxMessageSize)
	conn.setMessageCallback(s.onMessage)
	conn.setCloseCallback(s.removeConnection)

	if err := conn.establishConn(); err != nil {
		unix.Close(socketfd)
		s.logger.Warn("register tcp connection", zap.Stringer("peer", peerAddr), zap.Error(err))
		return
	}

	s.conns.add(conn)
	s.logger.Info("new tcp connection",
		zap.Stringer("peer", peerAddr),
		zap.Int64("total", s.counters.TotalAccepted()),
		zap.Int64("current", s.counters.CurrentOpen()))
	s.connectedCallback(conn)
}

func (s *Server) removeConnection(conn *tcpConnection) {
	if !s.conns.remove(conn) {
		return
	}

	fields := []zap.Field{
		zap.Stringer("peer", conn.GetRemoteAddrPort()),
		zap.Int64("current", s.counters.CurrentOpen()),
	}
	if conn.lastErr != nil {
		fields = append(fields, zap.Error(conn.lastErr))
	}
	s.logger.Info("client disconnected", fields...)
	s.disconnectedCallback(conn)
}

func (s *Server) onMessage(conn *tcpConnection, msg []byte) {
	resp, cmd := s.dispatcher.Dispatch(msg)
	if err := conn.Send(resp); err != nil {
		s.logger.Debug("send to tcp client", zap.Stringer("peer", conn.GetRemoteAddrPort()), zap.Error(err))
	}

	if cmd == protocol.Shutdown {
		s.logger.Info("shutdown requested", zap.Stringer("peer", conn.GetRemoteAddrPort()))
		conn.handleClose()
		s.Stop()
	}
}

func (s *Server) onDatagram(from unix.Sockaddr, msg []byte) {
	resp, cmd := s.dispatcher.Dispatch(msg)
	if err := s.datagram.SendTo(resp, from); err != nil {
		s.logger.Debug("send to udp client", zap.Stringer("peer", sockaddrToAddrPort(from)), zap.Error(err))
	}

	if cmd == protocol.Shutdown {
		s.logger.Info("shutdown requested", zap.Stringer("peer", sockaddrToAddrPort(from)))
		s.Stop()
	}
}

func (s *Server) onLoopStart(loop eventloop.EventLoop) {
	if s.cfg.StatsInterval > 0 {
		loop.RunAt(time.Now().Add(s.cfg.StatsInterval), s.cfg.StatsInterval, s.logStats)
	}

	s.logger.Info("server started", zap.Int("port", s.cfg.Port))
}

func (s *Server) logStats() {
	s.logger.Info("stats",
		zap.Int64("total_accepted", s.counters.TotalAccepted()),
		zap.Int64("current_open", s.counters.CurrentOpen()),
		zap.Int("connections", s.conns.len()),
		zap.Int("watched", s.loop.GetChannelCount()))
}
