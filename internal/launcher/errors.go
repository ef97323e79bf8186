package launcher

import (
	"errors"
	"fmt"
)

// BuildError reports a failed image build. The launch stops before invoking the run.
type BuildError struct {
	Err   error
	Image string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build image %s: %v", e.Image, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// RunError reports an isolated run that did not exit cleanly.
type RunError struct {
	// Err is set when the runtime itself failed rather than the agent.
	Err      error
	ExitCode int
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("isolated run failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("isolated run exited with code %d", e.ExitCode)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExitCode maps a launch error to the launcher's process exit code. A run's own exit
// code passes through; every other failure is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *RunError
	if errors.As(err, &runErr) && runErr.ExitCode > 0 {
		return runErr.ExitCode
	}
	return 1
}
