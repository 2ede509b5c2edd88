// Package toolrun invokes external simulation tools with a bounded runtime
// and reports how the invocation ended as a typed outcome. Callers branch on
// the outcome, not on error string matching: a missing binary is fatal for a
// batch, a bad exit or an overrun only costs the current case.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

type Outcome int

const (
	Success Outcome = iota
	NonZeroExit
	TimedOut
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NonZeroExit:
		return "non-zero exit"
	case TimedOut:
		return "timed out"
	case NotFound:
		return "tool not found"
	default:
		return "unknown"
	}
}

type Cmd struct {
	Path    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

type Result struct {
	Outcome  Outcome
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// Run executes the command and classifies the result. The context bounds the
// whole invocation; Cmd.Timeout, when positive, tightens it further.
func Run(ctx context.Context, cmd Cmd) Result {
	path, err := exec.LookPath(cmd.Path)
	if err != nil {
		return Result{Outcome: NotFound, ExitCode: -1, Err: err}
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	runErr := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		Err:      runErr,
	}

	switch {
	case runErr == nil:
		res.Outcome = Success
	case ctx.Err() != nil:
		res.Outcome = TimedOut
		res.ExitCode = -1
	default:
		res.Outcome = NonZeroExit
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}
	return res
}
