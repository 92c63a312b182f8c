package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// ErrNotInstalled is returned when the binary is not on PATH.
var ErrNotInstalled = errors.New("process: binary not installed")

// Command is a subprocess to run.
type Command struct {
	// Binary is resolved through PATH.
	Binary string
	Args   []string
	Stdin  io.Reader
	// GracePeriod is the wait between SIGTERM and SIGKILL on cancellation.
	// Defaults to one second.
	GracePeriod time.Duration
}

// Result is the outcome of a finished subprocess.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Run executes cmd and waits for it. Cancelling ctx terminates the whole
// process group.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	path, err := exec.LookPath(cmd.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, cmd.Binary)
	}

	grace := cmd.GracePeriod
	if grace == 0 {
		grace = time.Second
	}

	c := exec.CommandContext(ctx, path, cmd.Args...) //nolint:gosec // probes run fixed binaries
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Stdin = cmd.Stdin
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = grace

	start := time.Now()
	err = c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("process: killed by context: %w", ctx.Err())
		}
		return result, fmt.Errorf("process: exit code %d: %w", result.ExitCode, err)
	}
	return result, nil
}
