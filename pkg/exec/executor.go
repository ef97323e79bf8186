// Package exec runs host commands and drives the container runtime that builds the
// agent image and hosts isolated runs.
package exec

import (
	"context"
	"io"
	"time"
)

// ExecutorType represents the type of executor.
type ExecutorType string

// Executor type constants.
const (
	ExecutorTypeLocal ExecutorType = "local"
)

// Executor runs a command on the host.
type Executor interface {
	// Run executes cmd. A non-zero exit is reported through Result.ExitCode, not err;
	// err is reserved for commands that could not be started or were cancelled.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor type name for logging/debugging.
	Name() ExecutorType
}

// Opts contains options for command execution.
//
//nolint:govet // Configuration struct, logical grouping preferred
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format) appended to the host's.
	Env []string

	// Timeout is the maximum duration for command execution. Zero means none.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string

	// Stdin, Stdout and Stderr attach the command to caller streams. Nil Stdout or
	// Stderr is captured into Result instead.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result contains the result of command execution.
type Result struct {
	// Stdout contains captured standard output, empty when attached.
	Stdout string

	// Stderr contains captured standard error, empty when attached.
	Stderr string

	// ExecutorUsed indicates which executor was used (for debugging)
	ExecutorUsed ExecutorType

	// Duration is how long the command took to execute.
	Duration time.Duration

	// ExitCode is the exit code of the command.
	ExitCode int
}
