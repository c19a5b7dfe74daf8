package profile

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/thadeu/go-transcode"
)

// Chain is the running form of a profile: one stream per step, each
// reading the output of the previous one. Reading a Chain reads the last
// step.
type Chain struct {
	name    string
	streams []*transcode.Stream
}

// Open starts every step of the profile and returns the last stream of
// the chain. Each step reads the output of the previous one; the first
// step reads upstream, which may be nil for commands that open their
// input themselves (e.g. "%s" as a file path).
//
// Closing the returned stream is enough: once the last process stops
// reading, every upstream stream is closed by the stream it feeds.
// If the first step fails to start, upstream is left to the caller. A
// later failure closes the streams already started, and with them upstream.
func (p *Profile) Open(upstream io.Reader, vars map[string]string, opts ...transcode.Options) (*transcode.Stream, error) {
	chain, err := p.OpenChain(upstream, vars, opts...)
	if err != nil {
		return nil, err
	}
	return chain.Last(), nil
}

// OpenChain is Open returning every stream of the chain, so callers can
// inspect the exit status of each step.
func (p *Profile) OpenChain(upstream io.Reader, vars map[string]string, opts ...transcode.Options) (*Chain, error) {
	commands, err := p.Commands(vars)
	if err != nil {
		return nil, err
	}

	chain := &Chain{name: p.Name}
	src := upstream
	for i, argv := range commands {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Env = p.Steps[i].environ()

		stream, err := transcode.New(cmd, src, opts...)
		if err != nil {
			if last := chain.Last(); last != nil {
				_ = last.Close()
			}
			return nil, fmt.Errorf("profile %s step %d: %w", p.Name, i+1, err)
		}
		chain.streams = append(chain.streams, stream)
		src = stream
	}
	return chain, nil
}

// Streams returns the stream of every step, in step order
func (c *Chain) Streams() []*transcode.Stream {
	return c.streams
}

// Last returns the stream of the final step
func (c *Chain) Last() *transcode.Stream {
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

// Read reads the output of the final step
func (c *Chain) Read(p []byte) (int, error) {
	return c.Last().Read(p)
}

// Close shuts every step down, last step first. It never returns an error.
func (c *Chain) Close() error {
	return c.Shutdown(context.Background())
}

// Shutdown is Close with waits that end early when ctx is done
func (c *Chain) Shutdown(ctx context.Context) error {
	for i := len(c.streams) - 1; i >= 0; i-- {
		_ = c.streams[i].Shutdown(ctx)
	}
	return nil
}

// ExitErr returns the exit error of the first step that failed, so a
// broken early step is reported even when the last step exits cleanly.
func (c *Chain) ExitErr() error {
	for i, stream := range c.streams {
		if err := stream.ExitErr(); err != nil {
			return fmt.Errorf("profile %s step %d: %w", c.name, i+1, err)
		}
	}
	return nil
}
