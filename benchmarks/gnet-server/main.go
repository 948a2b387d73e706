package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/panjf2000/gnet/v2"

	"github.com/markity/reactor-echo/pkg/protocol"
	"github.com/markity/reactor-echo/pkg/stats"
)

// one handler serves both the tcp and the udp engine
type echoServer struct {
	gnet.BuiltinEventEngine
	counters   stats.Counters
	dispatcher *protocol.Dispatcher
	addrs      []string
}

func (es *echoServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	if isStream(c) {
		es.counters.Accepted()
	}
	return
}

func (es *echoServer) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	if isStream(c) {
		es.counters.Closed()
	}
	return
}

// datagram peers are not counted
func isStream(c gnet.Conn) bool {
	_, ok := c.RemoteAddr().(*net.TCPAddr)
	return ok
}

func (es *echoServer) OnTraffic(c gnet.Conn) gnet.Action {
	data, _ := c.Next(-1)
	resp, cmd := es.dispatcher.Dispatch(data)
	c.Write(resp)

	if cmd == protocol.Shutdown {
		for _, addr := range es.addrs {
			go gnet.Stop(context.Background(), addr)
		}
		return gnet.Close
	}
	return gnet.None
}

func main() {
	var port int
	var multicore bool

	// Example command: go run ./benchmarks/gnet-server --port 8004
	flag.IntVar(&port, "port", 8004, "server port")
	flag.BoolVar(&multicore, "multicore", false, "multicore")
	flag.Parse()

	es := &echoServer{
		addrs: []string{fmt.Sprintf("tcp://:%d", port), fmt.Sprintf("udp://:%d", port)},
	}
	es.dispatcher = protocol.NewDispatcher(&es.counters)

	errc := make(chan error, len(es.addrs))
	for _, addr := range es.addrs {
		go func(addr string) {
			errc <- gnet.Run(es, addr, gnet.WithMulticore(multicore))
		}(addr)
	}

	for range es.addrs {
		if err := <-errc; err != nil {
			log.Fatal(err)
		}
	}
}
