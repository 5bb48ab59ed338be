package processor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultFFmpegPath     = "ffmpeg"
	DefaultCommandTimeout = 2 * time.Minute
)

// CommandRunner runs an external tool and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, each one bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, &CommandError{
			Name:   name,
			Args:   args,
			Err:    err,
			Stderr: stderr.String(),
		}
	}
	return stdout.Bytes(), nil
}

// CommandError is returned when an external tool exits unsuccessfully.
type CommandError struct {
	Name   string
	Args   []string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("error running %s: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// VerboseError includes the command line and the tool's output.
func (e *CommandError) VerboseError() string {
	return fmt.Sprintf("%s\n\n%s %s\n%s", e.Error(), e.Name, strings.Join(e.Args, " "), e.Stderr)
}
