package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const writerQueue = 256

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter moves log lines off the caller's goroutine. Lines are written to
// every sink in order; sinks are flushed whenever the queue drains.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}

	gate   sync.RWMutex
	closed bool

	sinks []*bufio.Writer

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, writerQueue),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.flushSinks())
				return
			}
			w.fail(w.writeSinks(line))
			if len(w.lines) == 0 {
				w.fail(w.flushSinks())
			}
		case ack := <-w.flushes:
			w.drain()
			ack <- w.flushSinks()
		}
	}
}

// drain writes lines queued before a flush request.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.fail(w.writeSinks(line))
		default:
			return
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failed(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush pushes everything written so far into the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failed(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.stopped:
		return w.failed()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.gate.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.gate.Unlock()
	<-w.stopped
	return w.failed()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	for _, s := range w.sinks {
		if _, err := s.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
