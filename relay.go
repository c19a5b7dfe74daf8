package transcode

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// feed copies the upstream source into the relay pipe. On exit it closes
// the source, then the pipe write end, which the relay sees as EOF.
func feed(dst io.WriteCloser, src io.Reader, buf []byte, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	defer dst.Close()
	defer func() {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Debug("error closing upstream source", "error", err)
			}
		}
	}()

	n, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		logCopyError(logger, "error copying upstream source to relay pipe", err, n)
		return
	}
	logger.Debug("upstream source exhausted", "bytes", n)
}

// relay copies the relay pipe into the process stdin until the pipe
// reports end of input or the process stops accepting input. On exit it
// closes the pipe read end, unblocking a feeder stuck on a full pipe, and
// then the process stdin.
func relay(dst io.WriteCloser, src io.ReadCloser, buf []byte, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	defer dst.Close()
	defer src.Close()

	n, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		logCopyError(logger, "error feeding relay pipe to transcoder", err, n)
		return
	}
	logger.Debug("transcoder input complete", "bytes", n)
}

// logCopyError logs failures caused by our own shutdown at debug and
// everything else at warn.
func logCopyError(logger *slog.Logger, msg string, err error, n int64) {
	if errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		logger.Debug(msg, "error", err, "bytes", n)
		return
	}
	logger.Warn(msg, "error", err, "bytes", n)
}
