package reactorecho

import (
	"go.uber.org/zap"
)

// StartInGoroutine creates, initializes and runs a server on a goroutine of
// its own and returns once Initialize finished. The channel receives the
// result of Run.
func StartInGoroutine(cfg Config, logger *zap.Logger) (*Server, <-chan error, error) {
	type started struct {
		server *Server
		err    error
	}

	c := make(chan started, 1)
	done := make(chan error, 1)
	go func() {
		// the loop belongs to this goroutine
		server := NewServer(cfg, logger)
		if err := server.Initialize(); err != nil {
			c <- started{err: err}
			return
		}
		c <- started{server: server}
		done <- server.Run()
	}()

	s := <-c
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.server, done, nil
}
