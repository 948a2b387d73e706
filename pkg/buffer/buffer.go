package buffer

import (
	"golang.org/x/sys/unix"
)

const initialSize = 8192

type buffer struct {
	data       []byte
	readIndex  int
	writeIndex int
}

func (buf *buffer) ReadableBytes() int {
	return buf.writeIndex - buf.readIndex
}

func (buf *buffer) peek() []byte {
	return buf.data[buf.readIndex:buf.writeIndex]
}

func (buf *buffer) retrieveAll() {
	buf.readIndex = 0
	buf.writeIndex = 0
}

// RetrieveAsBytes returns a copy of the readable bytes and empties the buffer
func (buf *buffer) RetrieveAsBytes() []byte {
	bs := make([]byte, buf.ReadableBytes())
	copy(bs, buf.peek())
	buf.retrieveAll()
	return bs
}

// make room for n more bytes after writeIndex, moving readable bytes to the
// front before growing
func (buf *buffer) ensureWritable(n int) {
	if len(buf.data)-buf.writeIndex >= n {
		return
	}

	readable := buf.ReadableBytes()
	if len(buf.data) >= readable+n {
		copy(buf.data, buf.data[buf.readIndex:buf.writeIndex])
	} else {
		newBytes := make([]byte, readable+n+initialSize)
		copy(newBytes, buf.data[buf.readIndex:buf.writeIndex])
		buf.data = newBytes
	}
	buf.readIndex = 0
	buf.writeIndex = readable
}

// ReadFD does one read(2) of at most limit bytes from fd into the buffer. A
// peer sending more than limit bytes at once sees them split across calls,
// a read never returns more. n is 0 with a nil error on EOF.
func (buf *buffer) ReadFD(fd int, limit int) (int, error) {
	buf.ensureWritable(limit)

	n, err := unix.Read(fd, buf.data[buf.writeIndex:buf.writeIndex+limit])
	if err != nil {
		return 0, err
	}

	buf.writeIndex += n
	return n, nil
}

func NewBuffer() Buffer {
	return &buffer{
		data:       make([]byte, initialSize),
		readIndex:  0,
		writeIndex: 0,
	}
}

type Buffer interface {
	ReadableBytes() int
	RetrieveAsBytes() []byte
	ReadFD(fd int, limit int) (int, error)
}
