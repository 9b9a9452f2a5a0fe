package systemctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Result holds the captured output of one command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// CommandError reports a command that could not be started, exited non-zero,
// or ran past its deadline. Output captured before the failure is kept.
type CommandError struct {
	Argv   []string
	Stdout []byte
	Stderr []byte
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Argv, " "), e.Err)
	if s := strings.TrimSpace(string(e.Stderr)); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exited reports whether the command ran to completion with a non-zero status.
func (e *CommandError) Exited() bool {
	var exitErr *exec.ExitError
	return errors.As(e.Err, &exitErr)
}

// ExecRunner runs commands with os/exec, each bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes name with args and waits for it to exit.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return res, &CommandError{
		Argv:   append([]string{name}, args...),
		Stdout: res.Stdout,
		Stderr: res.Stderr,
		Err:    err,
	}
}

// Lines returns the captured stdout and stderr split into lines. Output that
// cannot be split is reported as a final line naming the scan error.
func (e *CommandError) Lines() (stdout, stderr []string) {
	return linesOrError(e.Stdout), linesOrError(e.Stderr)
}

func linesOrError(out []byte) []string {
	lines, err := splitLines(out)
	if err != nil {
		lines = append(lines, err.Error())
	}
	return lines
}
