package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/tidwall/evio"

	"github.com/markity/reactor-echo/pkg/protocol"
	"github.com/markity/reactor-echo/pkg/stats"
)

func main() {
	var port int
	var loops int

	// Example command: go run ./benchmarks/evio-server --port 8001 --loops 1
	flag.IntVar(&port, "port", 8001, "server port")
	flag.IntVar(&loops, "loops", 0, "num loops")
	flag.Parse()

	var counters stats.Counters
	dispatcher := protocol.NewDispatcher(&counters)

	var events evio.Events
	events.NumLoops = loops
	events.Serving = func(srv evio.Server) (action evio.Action) {
		log.Printf("evio server started on port %d (event-loops: %d)", port, srv.NumLoops)
		return
	}
	// tcp only, datagrams have no open/close
	events.Opened = func(c evio.Conn) (out []byte, opts evio.Options, action evio.Action) {
		counters.Accepted()
		return
	}
	events.Closed = func(c evio.Conn, err error) (action evio.Action) {
		counters.Closed()
		return
	}
	events.Data = func(c evio.Conn, in []byte) (out []byte, action evio.Action) {
		if len(in) == 0 {
			return
		}
		resp, cmd := dispatcher.Dispatch(in)
		// in belongs to evio once Data returns
		out = append([]byte(nil), resp...)
		if cmd == protocol.Shutdown {
			action = evio.Shutdown
		}
		return
	}
	log.Fatal(evio.Serve(events, fmt.Sprintf("tcp://:%d", port), fmt.Sprintf("udp://:%d", port)))
}
