package transcode

import (
	"io"
	"sync"
)

// relayPipe is an in-memory pipe backed by a fixed-size ring buffer.
// Writes block while the buffer is full and reads block while it is
// empty, so a slow reader throttles the writer instead of growing memory.
// It has exactly one writer and one reader.
type relayPipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf   []byte
	start int // index of the first buffered byte
	size  int // number of buffered bytes

	writeClosed bool
	readClosed  bool
}

func newRelayPipe(capacity int) *relayPipe {
	if capacity <= 0 {
		capacity = DefaultPipeSize
	}
	p := &relayPipe{buf: make([]byte, capacity)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read copies buffered bytes into b. It returns io.EOF once the writer
// has closed and the buffer is drained.
func (p *relayPipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.size == 0 {
		if p.readClosed {
			return 0, io.ErrClosedPipe
		}
		if p.writeClosed {
			return 0, io.EOF
		}
		p.cond.Wait()
	}
	if p.readClosed {
		return 0, io.ErrClosedPipe
	}

	n := 0
	for n < len(b) && p.size > 0 {
		end := p.start + p.size
		if end > len(p.buf) {
			end = len(p.buf)
		}
		c := copy(b[n:], p.buf[p.start:end])
		n += c
		p.start = (p.start + c) % len(p.buf)
		p.size -= c
	}
	if p.size == 0 {
		p.start = 0
	}

	p.cond.Broadcast()
	return n, nil
}

// Write copies all of b into the buffer, blocking while it is full.
// It fails with io.ErrClosedPipe when either end has been closed.
func (p *relayPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(b) {
		for p.size == len(p.buf) && !p.readClosed && !p.writeClosed {
			p.cond.Wait()
		}
		if p.readClosed || p.writeClosed {
			return n, io.ErrClosedPipe
		}

		tail := (p.start + p.size) % len(p.buf)
		end := len(p.buf)
		if tail < p.start {
			end = p.start
		}
		c := copy(p.buf[tail:end], b[n:])
		n += c
		p.size += c

		p.cond.Broadcast()
	}
	return n, nil
}

// Buffered returns the number of bytes waiting to be read
func (p *relayPipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Cap returns the fixed capacity of the pipe
func (p *relayPipe) Cap() int {
	return len(p.buf)
}

// CloseWrite signals end of input to the reader. Safe to call repeatedly.
func (p *relayPipe) CloseWrite() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeClosed = true
	p.cond.Broadcast()
	return nil
}

// CloseRead discards buffered data and unblocks the writer with
// io.ErrClosedPipe. Safe to call repeatedly.
func (p *relayPipe) CloseRead() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readClosed = true
	p.start, p.size = 0, 0
	p.cond.Broadcast()
	return nil
}

// pipeWriter and pipeReader expose one end each, so the feeder and the
// relay can own and close their endpoint through io.Closer.
type pipeWriter struct{ p *relayPipe }

func (w pipeWriter) Write(b []byte) (int, error) { return w.p.Write(b) }
func (w pipeWriter) Close() error                { return w.p.CloseWrite() }

type pipeReader struct{ p *relayPipe }

func (r pipeReader) Read(b []byte) (int, error) { return r.p.Read(b) }
func (r pipeReader) Close() error               { return r.p.CloseRead() }
