package transcode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscode_Identity(t *testing.T) {
	requireTools(t, "cat")

	pcm := generatePCMData(8000, 500)
	var out bytes.Buffer

	n, err := Transcode(context.Background(), &out, exec.Command("cat"), bytes.NewReader(pcm), testOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(len(pcm)), n)
	assert.Equal(t, pcm, out.Bytes())
}

func TestTranscode_ExitStatus(t *testing.T) {
	requireTools(t, "sh")

	var out bytes.Buffer
	n, err := Transcode(context.Background(), &out, shell("cat; exit 2"), strings.NewReader("partial"), testOptions())

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "partial", out.String())
}

func TestTranscode_SpawnError(t *testing.T) {
	_, err := Transcode(context.Background(), &bytes.Buffer{}, exec.Command("/nonexistent/transcoder"), nil, testOptions())
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestTranscode_Cancelled(t *testing.T) {
	requireTools(t, "sleep")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Transcode(ctx, &bytes.Buffer{}, exec.Command("sleep", "30"), nil, testOptions())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCheckExecutable(t *testing.T) {
	requireTools(t, "sh")

	assert.NoError(t, CheckExecutable("sh"))
	assert.Error(t, CheckExecutable("definitely-not-a-transcoder-binary"))
}

// expiringContext reports DeadlineExceeded once expired, without ever
// closing Done, so an AfterFunc registered on it never runs
type expiringContext struct {
	context.Context
	expired atomic.Bool
}

func (c *expiringContext) Err() error {
	if c.expired.Load() {
		return context.DeadlineExceeded
	}
	return nil
}

// scriptedOutput serves data and expires ctx when it reports EOF
type scriptedOutput struct {
	r        io.Reader
	ctx      *expiringContext
	shutdown atomic.Int32
}

func (o *scriptedOutput) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	if err == io.EOF {
		o.ctx.expired.Store(true)
	}
	return n, err
}

func (o *scriptedOutput) Shutdown(context.Context) error {
	o.shutdown.Add(1)
	return nil
}

func (o *scriptedOutput) ExitErr() error { return nil }

func TestCopy_DeadlineAfterCompleteOutput(t *testing.T) {
	ctx := &expiringContext{Context: context.Background()}
	src := &scriptedOutput{r: strings.NewReader("all of it"), ctx: ctx}

	var out bytes.Buffer
	n, err := Copy(ctx, &out, src)

	require.NoError(t, err, "output was fully delivered before the deadline mattered")
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "all of it", out.String())
	assert.Equal(t, int32(1), src.shutdown.Load())
}
