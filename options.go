package transcode

import (
	"log/slog"
	"time"
)

// DefaultPipeSize is the capacity of the relay pipe between the upstream
// source and the process stdin.
const DefaultPipeSize = 64 * 1024

// Options configures a Stream
type Options struct {
	// Logger receives lifecycle, copy failure and diagnostic records
	// (defaults to slog.Default())
	Logger *slog.Logger

	// DiagnosticLevel is the level stderr lines are logged at (DefaultOptions uses Debug)
	DiagnosticLevel slog.Level

	// PipeSize sets the relay pipe capacity in bytes (defaults to 64KB)
	PipeSize int

	// CopyBufferSize sets the buffer used by the feeder and relay copy
	// loops (defaults to 32KB)
	CopyBufferSize int

	// TempFile is accepted for compatibility with file based callers.
	// Data never touches the filesystem, so the path is only logged.
	TempFile string

	// KillProcessGroup starts the process in its own process group and
	// terminates the whole group on close (unix only)
	KillProcessGroup bool

	// WaitTimeout bounds how long close waits for the process to exit
	// before killing it (0 = wait forever)
	WaitTimeout time.Duration

	// Monitor tracks spawned processes (defaults to GetMonitor())
	Monitor *ResourceMonitor
}

// DefaultOptions returns Options with sensible defaults
func DefaultOptions() Options {
	return Options{
		Logger:          slog.Default(),
		DiagnosticLevel: slog.LevelDebug,
		PipeSize:        DefaultPipeSize,
		CopyBufferSize:  32 * 1024, // 32KB
	}
}

// withDefaults fills zero fields with their defaults
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.PipeSize <= 0 {
		o.PipeSize = DefaultPipeSize
	}
	if o.CopyBufferSize <= 0 {
		o.CopyBufferSize = 32 * 1024
	}
	if o.Monitor == nil {
		o.Monitor = GetMonitor()
	}
	return o
}

// resolveOptions picks the first provided Options or the defaults
func resolveOptions(opts []Options) Options {
	if len(opts) == 0 {
		return DefaultOptions().withDefaults()
	}
	return opts[0].withDefaults()
}
