package systemctl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Stdout) != "out\n" {
		t.Errorf("stdout: got %q", res.Stdout)
	}
	if string(res.Stderr) != "err\n" {
		t.Errorf("stderr: got %q", res.Stderr)
	}
}

func TestExecRunnerExitStatus(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo partial; exit 2")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if !cmdErr.Exited() {
		t.Error("expected Exited() to be true")
	}
	if string(res.Stdout) != "partial\n" || string(cmdErr.Stdout) != "partial\n" {
		t.Errorf("partial output lost: res=%q err=%q", res.Stdout, cmdErr.Stdout)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	start := time.Now()
	_, err := ExecRunner{Timeout: 100 * time.Millisecond}.Run(context.Background(), "sleep", "5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Exited() {
		t.Error("a timed out command must not count as exited")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not stop the command")
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "/nonexistent/unitgate-test-binary")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.Exited() {
		t.Error("a command that never started must not count as exited")
	}
}
