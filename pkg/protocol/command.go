package protocol

import "bytes"

// Prefix marks a message as a command candidate.
const Prefix = '/'

type Command int

const (
	// the message is echoed back unchanged
	NotACommand Command = iota
	Time
	Stats
	Shutdown
	// starts with Prefix but matches nothing in the table
	Unknown
)

func (c Command) String() string {
	switch c {
	case NotACommand:
		return "NotACommand"
	case Time:
		return "Time"
	case Stats:
		return "Stats"
	case Shutdown:
		return "Shutdown"
	case Unknown:
		return "Unknown"
	}
	return "Command(?)"
}

const (
	ShutdownReply = "Server shutting down..."
	UnknownReply  = "Unknown command"
)

type commandEntry struct {
	// matched as a case sensitive prefix of the whole message
	name  string
	cmd   Command
	reply func(d *Dispatcher) []byte
}

// first match wins, so an entry must not be a prefix of a later one
var commandTable = []commandEntry{
	{name: "/time", cmd: Time, reply: (*Dispatcher).timeReply},
	{name: "/stats", cmd: Stats, reply: (*Dispatcher).statsReply},
	{name: "/shutdown", cmd: Shutdown, reply: func(*Dispatcher) []byte { return []byte(ShutdownReply) }},
}

// Classify tells which command msg carries.
func Classify(msg []byte) Command {
	_, cmd := lookup(msg)
	return cmd
}

func lookup(msg []byte) (*commandEntry, Command) {
	if len(msg) == 0 || msg[0] != Prefix {
		return nil, NotACommand
	}

	for i := range commandTable {
		if bytes.HasPrefix(msg, []byte(commandTable[i].name)) {
			return &commandTable[i], commandTable[i].cmd
		}
	}
	return nil, Unknown
}
