// Package workflow drives the fixed-length reconnaissance loop: one backend query per
// step, strictly sequential, with per-step failures reported and skipped.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"strix/pkg/config"
	"strix/pkg/llmerrors"
	"strix/pkg/logx"
	"strix/pkg/metrics"
)

// Backend answers one prompt. llm.Client satisfies it.
type Backend interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// StepResult is the outcome of one step.
type StepResult struct {
	Err      error
	Prompt   string
	Response string
	Index    int
}

// OK reports whether the step produced a response.
func (r StepResult) OK() bool {
	return r.Err == nil
}

// ErrNoSteps is returned when Run is asked for fewer than one step.
var ErrNoSteps = errors.New("workflow requires at least one step")

// Executor runs the workflow against one target.
type Executor struct {
	backend     Backend
	report      io.Writer
	recorder    metrics.Recorder
	logger      *logx.Logger
	target      string
	mode        string
	interactive bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithInteractive marks prompts as interactive.
func WithInteractive(interactive bool) Option {
	return func(e *Executor) { e.interactive = interactive }
}

// WithMode sets the target mode label; empty keeps the default "host".
func WithMode(mode string) Option {
	return func(e *Executor) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithReport sends the per-step report to w instead of stdout.
func WithReport(w io.Writer) Option {
	return func(e *Executor) { e.report = w }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor creates an executor for target.
func NewExecutor(backend Backend, target string, opts ...Option) *Executor {
	e := &Executor{
		backend:  backend,
		target:   target,
		mode:     config.DefaultMode,
		report:   os.Stdout,
		recorder: metrics.Nop(),
		logger:   logx.NewLogger("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prompt returns the prompt for step i (1-based).
func (e *Executor) Prompt(i int) string {
	prompt := fmt.Sprintf("Step %d analysis for %s", i, e.target)
	if e.interactive {
		prompt += " (interactive mode)"
	}
	return prompt
}

// Run executes steps sequential queries. A failed step is reported and the loop moves
// on; only cancellation of ctx stops it early, returning the results so far.
func (e *Executor) Run(ctx context.Context, steps int) ([]StepResult, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoSteps, steps)
	}

	e.printf("Running recon workflow on %s in %s mode for %d steps...\n", e.target, e.mode, steps)

	results := make([]StepResult, 0, steps)
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Workflow cancelled before step %d: %v", i, err)
			return results, err
		}

		res := StepResult{Index: i, Prompt: e.Prompt(i)}
		res.Response, res.Err = e.backend.Query(ctx, res.Prompt)
		e.recorder.ObserveStep(res.Err == nil)

		if res.Err != nil {
			e.logger.Warn("Step %d failed (%s): %v", i, llmerrors.TypeOf(res.Err), res.Err)
			e.printf("Step %d: [Error: %v]\n", i, res.Err)
		} else {
			e.printf("Step %d: %s\n", i, res.Response)
		}
		results = append(results, res)
	}

	return results, nil
}

func (e *Executor) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(e.report, format, args...); err != nil {
		e.logger.Debug("report write failed: %v", err)
	}
}

// Failed counts the failed steps in results.
func Failed(results []StepResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
