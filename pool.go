package transcode

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

const defaultMaxWorkers = 64

// Pool bounds the number of transcoder processes running at once
type Pool struct {
	maxWorkers int
	semaphore  chan struct{}
	active     int
	mu         sync.Mutex
}

// NewPool creates a pool with the default limit
// Default: 64 workers (configurable via TRANSCODE_MAX_WORKERS env var)
func NewPool() *Pool {
	maxWorkers := defaultMaxWorkers

	if envMax := os.Getenv("TRANSCODE_MAX_WORKERS"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxWorkers = parsed
		}
	}

	return NewPoolWithLimit(maxWorkers)
}

// NewPoolWithLimit creates a pool with specific max workers
func NewPoolWithLimit(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	return &Pool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Acquire blocks until a worker slot is available
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool acquire cancelled: %w", ctx.Err())
	}
}

// Release frees a worker slot
func (p *Pool) Release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	<-p.semaphore
}

// ActiveWorkers returns the number of running transcoders
func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// MaxWorkers returns the maximum concurrent transcoders allowed
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// AvailableSlots returns the number of available worker slots
func (p *Pool) AvailableSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxWorkers - p.active
}

// PooledStream is a Stream holding a pool slot until it is closed
type PooledStream struct {
	*Stream
	pool    *Pool
	release sync.Once
}

// Open waits for a free slot and then starts the transcoder. The slot is
// released when the returned stream is closed, or immediately if the
// transcoder cannot be started. If ctx ends while waiting, upstream is
// left untouched.
func (p *Pool) Open(ctx context.Context, cmd *exec.Cmd, upstream io.Reader, opts ...Options) (*PooledStream, error) {
	if err := p.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire worker slot: %w", err)
	}

	stream, err := New(cmd, upstream, opts...)
	if err != nil {
		p.Release()
		return nil, err
	}

	return &PooledStream{Stream: stream, pool: p}, nil
}

// Close closes the stream and releases the worker slot
func (ps *PooledStream) Close() error {
	return ps.Shutdown(context.Background())
}

// Shutdown shuts the stream down and releases the worker slot
func (ps *PooledStream) Shutdown(ctx context.Context) error {
	err := ps.Stream.Shutdown(ctx)
	ps.release.Do(ps.pool.Release)
	return err
}
