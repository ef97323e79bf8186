// Package metrics provides Prometheus-based metrics recording for backend queries,
// workflow steps, image builds and isolated runs.
package metrics

import "time"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder defines the interface for recording launcher and agent metrics.
type Recorder interface {
	// ObserveQuery records one backend query.
	ObserveQuery(provider, model string, promptTokens int, success bool, errorType string, duration time.Duration)

	// ObserveStep records the outcome of one workflow step.
	ObserveStep(success bool)

	// ObserveBuild records one image build attempt.
	ObserveBuild(success bool, duration time.Duration)

	// ObserveRun records a finished isolated run.
	ObserveRun(exitCode int, duration time.Duration)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveQuery(_, _ string, _ int, _ bool, _ string, _ time.Duration) {}

func (n *NoopRecorder) ObserveStep(_ bool) {}

func (n *NoopRecorder) ObserveBuild(_ bool, _ time.Duration) {}

func (n *NoopRecorder) ObserveRun(_ int, _ time.Duration) {}

func status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}
