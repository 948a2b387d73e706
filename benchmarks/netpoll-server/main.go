package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/cloudwego/netpoll"

	"github.com/markity/reactor-echo/pkg/protocol"
	"github.com/markity/reactor-echo/pkg/stats"
)

type echoServer struct {
	counters   stats.Counters
	dispatcher *protocol.Dispatcher
	loop       netpoll.EventLoop
}

func (s *echoServer) prepare(conn netpoll.Connection) context.Context {
	s.counters.Accepted()
	_ = conn.AddCloseCallback(func(netpoll.Connection) error {
		s.counters.Closed()
		return nil
	})
	return context.Background()
}

func (s *echoServer) handle(ctx context.Context, conn netpoll.Connection) error {
	reader, writer := conn.Reader(), conn.Writer()
	defer reader.Release()

	msg, err := reader.Next(reader.Len())
	if err != nil {
		return err
	}

	resp, cmd := s.dispatcher.Dispatch(msg)
	if _, err := writer.WriteBinary(resp); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if cmd == protocol.Shutdown {
		conn.Close()
		go s.loop.Shutdown(context.Background())
	}
	return nil
}

func main() {
	var port int

	// Example command: go run ./benchmarks/netpoll-server --port 8003
	flag.IntVar(&port, "port", 8003, "server port")
	flag.Parse()

	listener, err := netpoll.CreateListener("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatal(err)
	}

	s := &echoServer{}
	s.dispatcher = protocol.NewDispatcher(&s.counters)
	s.loop, err = netpoll.NewEventLoop(s.handle, netpoll.WithOnPrepare(s.prepare))
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("netpoll server started on port %d", port)
	if err := s.loop.Serve(listener); err != nil {
		log.Fatal(err)
	}
}
