package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/Allenxuxu/gev"

	"github.com/markity/reactor-echo/pkg/protocol"
	"github.com/markity/reactor-echo/pkg/stats"
)

type echoServer struct {
	counters   stats.Counters
	dispatcher *protocol.Dispatcher
	server     *gev.Server
}

func (s *echoServer) OnConnect(c *gev.Connection) {
	s.counters.Accepted()
}

func (s *echoServer) OnMessage(c *gev.Connection, ctx interface{}, data []byte) (out interface{}) {
	resp, cmd := s.dispatcher.Dispatch(data)
	out = append([]byte(nil), resp...)
	if cmd == protocol.Shutdown {
		// Stop waits for the loops, this one included
		go s.server.Stop()
	}
	return
}

func (s *echoServer) OnClose(c *gev.Connection) {
	s.counters.Closed()
}

func main() {
	var port int
	var loops int

	// Example command: go run ./benchmarks/gev-server --port 8002 --loops 1
	flag.IntVar(&port, "port", 8002, "server port")
	flag.IntVar(&loops, "loops", 1, "num loops")
	flag.Parse()

	handler := &echoServer{}
	handler.dispatcher = protocol.NewDispatcher(&handler.counters)

	s, err := gev.NewServer(handler,
		gev.Address(":"+strconv.Itoa(port)),
		gev.NumLoops(loops))
	if err != nil {
		log.Fatal(err)
	}
	handler.server = s

	log.Printf("gev server started on port %d (event-loops: %d)", port, loops)
	s.Start()
}
