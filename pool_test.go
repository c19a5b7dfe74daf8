package transcode

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_FromEnv(t *testing.T) {
	t.Setenv("TRANSCODE_MAX_WORKERS", "7")
	assert.Equal(t, 7, NewPool().MaxWorkers())

	t.Setenv("TRANSCODE_MAX_WORKERS", "not-a-number")
	assert.Equal(t, defaultMaxWorkers, NewPool().MaxWorkers())
}

func TestNewPoolWithLimit(t *testing.T) {
	assert.Equal(t, 3, NewPoolWithLimit(3).MaxWorkers())
	assert.Equal(t, defaultMaxWorkers, NewPoolWithLimit(0).MaxWorkers())
}

func TestPool_AcquireRelease(t *testing.T) {
	p := NewPoolWithLimit(1)
	require.NoError(t, p.Acquire(context.Background()))
	assert.Equal(t, 1, p.ActiveWorkers())
	assert.Equal(t, 0, p.AvailableSlots())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Acquire(ctx), context.DeadlineExceeded)

	p.Release()
	assert.Equal(t, 0, p.ActiveWorkers())
	assert.Equal(t, 1, p.AvailableSlots())
}

func TestPool_Open(t *testing.T) {
	requireTools(t, "cat")

	p := NewPoolWithLimit(1)
	stream, err := p.Open(context.Background(), exec.Command("cat"), strings.NewReader("pooled"), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, p.ActiveWorkers())

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "pooled", string(got))

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	assert.Equal(t, 0, p.ActiveWorkers())
}

func TestPool_OpenReleasesOnSpawnError(t *testing.T) {
	p := NewPoolWithLimit(1)

	_, err := p.Open(context.Background(), exec.Command("/nonexistent/transcoder"), nil, testOptions())
	assert.ErrorIs(t, err, ErrSpawn)
	assert.Equal(t, 0, p.ActiveWorkers())
}

func TestPool_OpenWaitsForSlot(t *testing.T) {
	requireTools(t, "cat")

	p := NewPoolWithLimit(1)
	first, err := p.Open(context.Background(), exec.Command("cat"), nil, testOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Open(ctx, exec.Command("cat"), nil, testOptions())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())

	second, err := p.Open(context.Background(), exec.Command("cat"), nil, testOptions())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
