// Package async_log is a double buffered file writer: callers append to an
// in-memory buffer under a mutex, a background goroutine writes filled
// buffers to disk. It plugs into zap as a zapcore.WriteSyncer.
package async_log

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const defaultFlushInterval = 3 * time.Second

type Writer struct {
	mu sync.Mutex

	currentBuffer *buffer
	backupBuffers []*buffer
	fullBuffers   []*buffer

	// serializes file writes, buffers reach the file in the order they filled
	flushMu sync.Mutex

	// readonly variables, can share without lock
	file          *os.File
	bufferSize    int64
	flushInterval time.Duration

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ zapcore.WriteSyncer = (*Writer)(nil)

// NewWriter opens path for appending and starts the background flusher.
func NewWriter(path string, backupBufferNums int, bufferSize int64) (*Writer, error) {
	if backupBufferNums <= 0 {
		backupBufferNums = 2
	}
	if bufferSize <= 0 {
		bufferSize = 4 << 20
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	backup := make([]*buffer, 0, backupBufferNums)
	for i := 0; i < backupBufferNums; i++ {
		backup = append(backup, newLogBuffer(bufferSize))
	}
	lo := &Writer{
		currentBuffer: newLogBuffer(bufferSize),
		backupBuffers: backup,
		file:          f,
		bufferSize:    bufferSize,
		flushInterval: defaultFlushInterval,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	lo.wg.Add(1)
	go lo.background()
	return lo, nil
}

// 背景协程异步刷入到磁盘
func (lo *Writer) background() {
	defer lo.wg.Done()

	ticker := time.NewTicker(lo.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lo.wake:
		case <-ticker.C:
		case <-lo.done:
			lo.flush()
			return
		}
		lo.flush()
	}
}

// Write copies p into the current buffer, it never touches the file.
func (lo *Writer) Write(p []byte) (int, error) {
	lo.mu.Lock()
	defer lo.mu.Unlock()

	if lo.currentBuffer.Append(p) {
		return len(p), nil
	}

	lo.rotate()
	if !lo.currentBuffer.Append(p) {
		// larger than a whole buffer, give it one of its own
		big := newLogBuffer(int64(len(p)))
		big.Append(p)
		lo.fullBuffers = append(lo.fullBuffers, big)
	}

	select {
	case lo.wake <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Sync writes everything buffered so far and fsyncs the file.
func (lo *Writer) Sync() error {
	if err := lo.flush(); err != nil {
		return err
	}
	return lo.file.Sync()
}

// Close stops the flusher after a last flush and closes the file.
func (lo *Writer) Close() error {
	var err error
	lo.closeOnce.Do(func() {
		close(lo.done)
		lo.wg.Wait()
		err = lo.file.Close()
	})
	return err
}

// move the current buffer to the full list, must be called with lo.mu held
func (lo *Writer) rotate() {
	lo.fullBuffers = append(lo.fullBuffers, lo.currentBuffer)
	if len(lo.backupBuffers) != 0 {
		lo.currentBuffer = lo.backupBuffers[len(lo.backupBuffers)-1]
		lo.backupBuffers = lo.backupBuffers[:len(lo.backupBuffers)-1]
	} else {
		lo.currentBuffer = newLogBuffer(lo.bufferSize)
	}
}

func (lo *Writer) flush() error {
	lo.flushMu.Lock()
	defer lo.flushMu.Unlock()

	lo.mu.Lock()
	if !lo.currentBuffer.Empty() {
		lo.rotate()
	}
	tobeWritten := lo.fullBuffers
	lo.fullBuffers = make([]*buffer, 0)
	lo.mu.Unlock()

	var firstErr error
	for _, v := range tobeWritten {
		if _, err := lo.file.Write(v.data); err != nil && firstErr == nil {
			firstErr = err
		}
		v.Reset()
	}

	lo.mu.Lock()
	for _, v := range tobeWritten {
		// oversized ones are dropped
		if int64(cap(v.data)) == lo.bufferSize {
			lo.backupBuffers = append(lo.backupBuffers, v)
		}
	}
	lo.mu.Unlock()
	return firstErr
}

// fixed capacity chunk, Append refuses what does not fit
type buffer struct {
	data []byte
}

func newLogBuffer(size int64) *buffer {
	return &buffer{data: make([]byte, 0, size)}
}

func (buf *buffer) Empty() bool {
	return len(buf.data) == 0
}

func (buf *buffer) Reset() {
	buf.data = buf.data[:0]
}

func (buf *buffer) Append(bs []byte) bool {
	if cap(buf.data)-len(buf.data) < len(bs) {
		return false
	}

	buf.data = append(buf.data, bs...)
	return true
}
