package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Stream is a readable byte stream backed by a transcoder process.
// Its bytes are the process stdout. An optional upstream source is fed
// into the process stdin through a bounded in-memory pipe, so streams
// can be chained by passing one Stream as the upstream of the next.
//
// Stream owns the process: Close terminates it on every path.
type Stream struct {
	id     string
	cmd    *exec.Cmd
	opts   Options
	logger *slog.Logger

	stdout *os.File
	stdin  io.WriteCloser // nil when the caller supplied cmd.Stdin

	pipe       *relayPipe    // nil without upstream
	feederDone chan struct{} // nil without upstream
	relayDone  chan struct{} // nil without upstream
	drainDone  chan struct{} // nil when the caller supplied cmd.Stderr

	exited  chan struct{}
	waitErr error

	closeOnce   sync.Once
	forceKilled atomic.Bool // set before the close-time kill is sent
}

// New starts cmd and returns a Stream over its stdout. When upstream is
// non-nil it is copied into the process stdin in the background and is
// closed (if it is an io.Closer) once exhausted or on failure; ownership
// passes to the Stream only when New succeeds.
//
// cmd must not have been started and its Stdout must be unset. If the
// process cannot be started a *SpawnError is returned and nothing needs
// to be closed.
func New(cmd *exec.Cmd, upstream io.Reader, opts ...Options) (*Stream, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	if upstream != nil && cmd.Stdin != nil {
		return nil, ErrStdinConflict
	}

	o := resolveOptions(opts)
	s := &Stream{
		id:     uuid.NewString(),
		cmd:    cmd,
		opts:   o,
		exited: make(chan struct{}),
	}
	s.logger = o.Logger.With("stream", s.id, "process", processName(cmd))

	s.logger.Info("starting transcoder", "command", formatArgs(cmd.Args))
	if o.TempFile != "" {
		s.logger.Info("temp file ignored, data is piped in memory", "temp_file", o.TempFile)
	}

	if err := s.start(); err != nil {
		o.Monitor.RecordSpawnFailure()
		return nil, &SpawnError{Args: cmd.Args, Err: err}
	}

	pid := cmd.Process.Pid
	o.Monitor.TrackProcess(pid)
	go s.wait(pid)

	if upstream != nil {
		s.pipe = newRelayPipe(o.PipeSize)
		s.feederDone = make(chan struct{})
		s.relayDone = make(chan struct{})

		go feed(pipeWriter{s.pipe}, upstream, make([]byte, o.CopyBufferSize), s.logger, s.feederDone)
		go relay(s.stdin, pipeReader{s.pipe}, make([]byte, o.CopyBufferSize), s.logger, s.relayDone)
	}

	return s, nil
}

// start wires the stdio pipes and spawns the process. On failure every
// descriptor it opened is closed again.
func (s *Stream) start() error {
	cmd := s.cmd
	if cmd.Process != nil {
		return errors.New("command already started")
	}
	if cmd.Stdout != nil {
		return errors.New("command stdout already set")
	}

	// Child ends are closed in the parent once the process holds them.
	var childEnds, parentEnds []*os.File
	fail := func(err error) error {
		closeFiles(childEnds)
		closeFiles(parentEnds)
		return err
	}

	var stdin *os.File
	if cmd.Stdin == nil {
		r, w, err := os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("failed to create stdin pipe: %w", err))
		}
		childEnds, parentEnds = append(childEnds, r), append(parentEnds, w)
		cmd.Stdin = r
		stdin = w
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	childEnds, parentEnds = append(childEnds, stdoutW), append(parentEnds, stdoutR)
	cmd.Stdout = stdoutW

	var stderr *os.File
	if cmd.Stderr == nil {
		r, w, err := os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("failed to create stderr pipe: %w", err))
		}
		childEnds, parentEnds = append(childEnds, w), append(parentEnds, r)
		cmd.Stderr = w
		stderr = r
	}

	if s.opts.KillProcessGroup {
		setProcessGroup(cmd)
	}

	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	closeFiles(childEnds)

	s.stdout = stdoutR
	if stdin != nil {
		s.stdin = &onceCloser{WriteCloser: stdin}
	}
	if stderr != nil {
		s.drainDone = make(chan struct{})
		go drainDiagnostics(stderr, s.logger, s.opts.DiagnosticLevel, s.drainDone)
	}
	return nil
}

// wait reaps the process as soon as it exits
func (s *Stream) wait(pid int) {
	err := s.cmd.Wait()

	// A kill issued by Close is counted as a forced kill only. Exits
	// caused by closing stdout early (SIGPIPE) still count as failures.
	s.opts.Monitor.UntrackProcess(pid)
	if err != nil && !s.forceKilled.Load() {
		s.opts.Monitor.RecordFailure()
	}

	s.waitErr = err
	close(s.exited)
}

// ID returns the identifier attached to the stream's log records
func (s *Stream) ID() string {
	return s.id
}

// Cmd returns the underlying command. After Close, Cmd().ProcessState
// holds the exit status.
func (s *Stream) Cmd() *exec.Cmd {
	return s.cmd
}

// Process returns the underlying process handle. The Stream keeps
// ownership of it.
func (s *Stream) Process() *os.Process {
	return s.cmd.Process
}

// Read reads transcoded bytes from the process stdout. It returns io.EOF
// once the process has closed its output.
func (s *Stream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// ReadByte reads a single byte from the process stdout
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := s.stdout.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close closes the process stdout and stdin, waits for the process to
// exit and then kills it unconditionally. It never returns an error and
// may be called more than once.
func (s *Stream) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown is Close with a wait that ends early when ctx is done. The
// process is killed either way.
func (s *Stream) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.shutdown(ctx)
	})
	return nil
}

func (s *Stream) shutdown(ctx context.Context) {
	s.closeQuietly("stdout", s.stdout)
	if s.stdin != nil {
		s.closeQuietly("stdin", s.stdin)
	}

	defer s.terminate()

	if s.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WaitTimeout)
		defer cancel()
	}

	select {
	case <-s.exited:
		if s.waitErr != nil {
			s.logger.Debug("transcoder exited", "error", s.waitErr)
		} else {
			s.logger.Debug("transcoder exited")
		}
	case <-ctx.Done():
		s.logger.Warn("wait for transcoder exit interrupted", "error", ctx.Err())
	}
}

// terminate force-kills the process. It is a no-op once the process has
// been reaped.
func (s *Stream) terminate() {
	running := true
	select {
	case <-s.exited:
		running = false
	default:
	}
	if running {
		s.forceKilled.Store(true)
	}

	if s.opts.KillProcessGroup {
		if err := killProcessGroup(s.cmd.Process.Pid); err != nil {
			s.logger.Debug("failed to kill transcoder process group", "error", err)
		}
	}

	err := s.cmd.Process.Kill()
	switch {
	case err == nil && running:
		s.opts.Monitor.RecordForcedKill()
		s.logger.Debug("transcoder killed")
	case err != nil && !errors.Is(err, os.ErrProcessDone):
		s.logger.Debug("failed to kill transcoder", "error", err)
	}
}

func (s *Stream) closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		s.logger.Debug("error closing transcoder "+name, "error", err)
	}
}

// onceCloser makes repeated Close calls return the first result
type onceCloser struct {
	io.WriteCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.WriteCloser.Close()
	})
	return c.err
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func processName(cmd *exec.Cmd) string {
	if len(cmd.Args) > 0 {
		return cmd.Args[0]
	}
	return cmd.Path
}
