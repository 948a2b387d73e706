package reactorecho

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	DefaultPort           = 8080
	DefaultMaxMessageSize = 1024
	DefaultMaxEvents      = 64
)

type LogConfig struct {
	// debug, info, warn or error
	Level string
	// empty means stdout
	File string
}

type Config struct {
	// both the stream listener and the datagram socket bind it on all interfaces
	Port int

	// one read or one datagram never yields more bytes than this,
	// longer messages are truncated
	MaxMessageSize int

	// upper bound of the ready events handled per epoll_wait
	MaxEvents int

	// syscall.Listen param, see man 2 listen()
	ListenBacklog int

	// 0 disables the periodic stats line
	StatsInterval time.Duration

	Log LogConfig
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		MaxMessageSize: DefaultMaxMessageSize,
		MaxEvents:      DefaultMaxEvents,
		ListenBacklog:  unix.SOMAXCONN,
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return errors.Errorf("invalid max message size %d", c.MaxMessageSize)
	}
	if c.MaxEvents <= 0 {
		return errors.Errorf("invalid max events %d", c.MaxEvents)
	}
	if c.ListenBacklog <= 0 {
		return errors.Errorf("invalid listen backlog %d", c.ListenBacklog)
	}
	if c.StatsInterval < 0 {
		return errors.Errorf("invalid stats interval %v", c.StatsInterval)
	}
	return nil
}

// ParsePortArg picks the port from the positional arguments: DefaultPort when
// there is none, otherwise the first one read like atoi(3): leading white
// space and one sign are skipped, then decimal digits up to the first other
// byte. No digits gives 0. Validate refuses what is not a port.
func ParsePortArg(args []string) int {
	if len(args) == 0 {
		return DefaultPort
	}

	s := strings.TrimLeft(args[0], " \t\n\v\f\r")
	start := 0
	if start < len(s) && (s[start] == '+' || s[start] == '-') {
		start++
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}

	port, err := strconv.Atoi(s[:end])
	if err != nil {
		// out of int range, never a port
		return 0
	}
	return port
}
