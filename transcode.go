package transcode

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Transcode runs cmd as a one-shot conversion: src is fed to the process
// and everything it writes to stdout is copied to dst. Cancelling ctx
// shuts the stream down without waiting for the process to exit.
//
// A process that exits with a non-zero status is reported as an
// *exec.ExitError after its output has been copied.
func Transcode(ctx context.Context, dst io.Writer, cmd *exec.Cmd, src io.Reader, opts ...Options) (int64, error) {
	stream, err := New(cmd, src, opts...)
	if err != nil {
		return 0, err
	}
	return Copy(ctx, dst, stream)
}

// ProcessReader is a process-backed reader that can be shut down and
// asked for its exit status. Stream implements it, as do chains of
// streams.
type ProcessReader interface {
	io.Reader
	Shutdown(ctx context.Context) error
	ExitErr() error
}

// Copy copies src to dst until EOF, then shuts src down and reports its
// exit status. When ctx ends first, src is shut down without waiting and
// ctx.Err() is returned.
func Copy(ctx context.Context, dst io.Writer, src ProcessReader) (int64, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = src.Shutdown(ctx)
	})
	n, copyErr := io.Copy(dst, src)
	interrupted := !stop()
	_ = src.Shutdown(context.Background())

	if copyErr != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("failed to read transcoder output: %w", copyErr)
	}
	if interrupted {
		return n, ctx.Err()
	}
	return n, src.ExitErr()
}

// Exited is closed once the process has exited and been reaped
func (s *Stream) Exited() <-chan struct{} {
	return s.exited
}

// ExitErr returns the error from waiting on the process: nil for a clean
// exit, an *exec.ExitError for a failed one. Only meaningful after Exited
// is closed.
func (s *Stream) ExitErr() error {
	select {
	case <-s.exited:
		return s.waitErr
	default:
		return nil
	}
}

// CheckExecutable verifies that a transcoder binary is installed and
// accessible
func CheckExecutable(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("transcoder %q not found or not executable: %w", name, err)
	}
	return nil
}
