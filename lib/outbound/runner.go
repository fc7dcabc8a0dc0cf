// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RunOutcome is what a finished command printed and how it exited.
type RunOutcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CommandRunner runs a command to completion. A command that starts
// and exits non-zero is reported through RunOutcome.ExitCode with a nil
// error; the error is for commands that could not run or were killed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) (RunOutcome, error)
}

// ExecRunner runs commands with os/exec. The process is killed when
// ctx is done.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args []string) (RunOutcome, error) {
	command := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	outcome := RunOutcome{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return outcome, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil && exitErr.ExitCode() > 0 {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	return outcome, err
}

// DeliveryError is a CLI send that exited non-zero.
type DeliveryError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *DeliveryError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Stdout)
	}
	if detail == "" {
		detail = fmt.Sprintf("exit code %d", e.ExitCode)
	}
	return "tele-cli send failed: " + detail
}
