package session

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/idgrep/internal/invocation"
)

const (
	// stderrLimit bounds how much engine diagnostics are kept for logging
	stderrLimit = 16 * 1024

	// defaultWaitDelay bounds how long Wait blocks on pipes after a kill
	defaultWaitDelay = 2 * time.Second
)

// capBuffer keeps the first limit bytes written and counts the rest
type capBuffer struct {
	mu        sync.Mutex
	b         []byte
	limit     int
	truncated bool
}

func newCapBuffer(limit int) *capBuffer {
	return &capBuffer{b: make([]byte, 0, 512), limit: limit}
}

func (c *capBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remain := c.limit - len(c.b); remain > 0 {
		keep := p
		if len(keep) > remain {
			keep = keep[:remain]
			c.truncated = true
		}
		c.b = append(c.b, keep...)
	} else if len(p) > 0 {
		c.truncated = true
	}
	return len(p), nil
}

func (c *capBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return string(c.b) + "...(truncated)"
	}
	return string(c.b)
}

// engineProcess is a running engine child. close must be called on every
// path; it kills the child if still running and always reaps it.
type engineProcess struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *capBuffer
	drain  *errgroup.Group
	cancel context.CancelFunc

	once    sync.Once
	waitErr error
}

func startEngine(parent context.Context, inv *invocation.Invocation, waitDelay time.Duration) (*engineProcess, error) {
	ctx, cancel := context.WithCancel(parent)

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = waitDelay
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	p := &engineProcess{
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
		stderr: newCapBuffer(stderrLimit),
		drain:  &errgroup.Group{},
		cancel: cancel,
	}
	p.drain.Go(func() error {
		_, err := io.Copy(p.stderr, stderrPipe)
		if stderrors.Is(err, os.ErrClosed) {
			return nil
		}
		return err
	})
	return p, nil
}

func (p *engineProcess) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// readLine returns the next stdout line including its terminator.
// The final line may lack one; io.EOF follows it.
func (p *engineProcess) readLine() ([]byte, error) {
	line, err := p.stdout.ReadBytes('\n')
	if len(line) > 0 && err == io.EOF {
		return line, nil
	}
	return line, err
}

// wait reaps the child after stdout has been fully read.
// It returns the exit code, or -1 with an error if the child did not exit
// normally.
func (p *engineProcess) wait() (int, error) {
	p.once.Do(func() {
		// stderr reaches EOF once the child exits
		_ = p.drain.Wait()
		p.waitErr = p.cmd.Wait()
		p.cancel()
	})
	return exitCode(p.waitErr)
}

// close kills the child if it is still running and reaps it
func (p *engineProcess) close() {
	p.once.Do(func() {
		p.cancel()
		p.waitErr = p.cmd.Wait()
		_ = p.drain.Wait()
	})
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
