package transcode

import (
	"bytes"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"
)

// requireTools skips the test when any of the POSIX tools is missing
func requireTools(t testing.TB, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if err := CheckExecutable(tool); err != nil {
			t.Skipf("%s not installed: %v", tool, err)
		}
	}
}

// testOptions returns quiet options with a monitor private to the test
func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Monitor = NewResourceMonitor()
	return opts
}

// bufferedOptions is testOptions logging text records at debug and
// above into the returned buffer
func bufferedOptions() (Options, *bytes.Buffer) {
	var buf bytes.Buffer
	opts := testOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return opts, &buf
}

// generatePCMData generates test PCM audio data (mono, 16-bit)
func generatePCMData(sampleRate, durationMs int) []byte {
	numSamples := (sampleRate * durationMs) / 1000
	buffer := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		value := int16((i % 1000) * 32)
		buffer[i*2] = byte(value & 0xFF)
		buffer[i*2+1] = byte((value >> 8) & 0xFF)
	}
	return buffer
}

// waitClosed reports whether ch is closed within d
func waitClosed(ch <-chan struct{}, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func shell(script string) *exec.Cmd {
	return exec.Command("sh", "-c", script)
}
