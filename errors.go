package transcode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpawn matches every *SpawnError through errors.Is
	ErrSpawn = errors.New("transcoder could not be started")

	// ErrNilCommand is returned when New is called without a command
	ErrNilCommand = errors.New("transcoder command is nil")

	// ErrStdinConflict is returned when an upstream source is supplied
	// for a command whose Stdin is already set
	ErrStdinConflict = errors.New("command stdin already set, cannot attach upstream source")

	errUnsupportedGroupKill = errors.New("process group kill not supported on this platform")
)

// SpawnError reports that the transcoder process could not be started.
// No resources are owned by the caller when it is returned.
type SpawnError struct {
	Args []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start transcoder %s: %v", formatArgs(e.Args), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSpawn) true for any SpawnError
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// formatArgs renders argv as [a][b][c] for log records and errors
func formatArgs(args []string) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteByte('[')
		b.WriteString(a)
		b.WriteByte(']')
	}
	return b.String()
}
