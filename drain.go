package transcode

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// drainLineSize caps a single diagnostic record; longer lines are split.
const drainLineSize = 4096

// drainDiagnostics reads the process stderr until EOF and logs every line.
// An unread stderr pipe fills up and blocks the process, so this runs for
// the whole life of the process.
func drainDiagnostics(r io.ReadCloser, logger *slog.Logger, level slog.Level, done chan<- struct{}) {
	defer close(done)
	defer r.Close()

	br := bufio.NewReaderSize(r, drainLineSize)
	for {
		line, err := br.ReadSlice('\n')
		if text := strings.TrimRight(string(line), "\r\n"); text != "" {
			logger.Log(context.Background(), level, text, "diagnostic", true)
		}
		if err == nil || errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
			logger.Warn("error draining transcoder diagnostics", "error", err)
		}
		return
	}
}
