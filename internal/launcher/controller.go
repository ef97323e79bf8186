// Package launcher drives one launch: decide whether the agent image must be rebuilt,
// build it if so, then invoke the isolated run and report its exit code.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"strix/pkg/config"
	"strix/pkg/fingerprint"
	"strix/pkg/launch"
	"strix/pkg/logx"
	"strix/pkg/metrics"
	"strix/pkg/persistence"
)

// ImageRegistry inspects and builds the agent image.
type ImageRegistry interface {
	ImageExists(ctx context.Context, image string) (bool, error)
	Build(ctx context.Context, image, contextDir string) error
}

// Runner executes an isolated run synchronously and returns its exit code.
type Runner interface {
	Run(ctx context.Context, spec *launch.Spec) (int, error)
}

// HistoryRecorder stores a finished launch.
type HistoryRecorder interface {
	RecordLaunch(ctx context.Context, rec *persistence.LaunchRecord) error
}

// FingerprintFunc computes the content fingerprint of a project root.
type FingerprintFunc func(root string) (string, error)

// Settings are the host-side facts a launch depends on.
type Settings struct {
	// Lookup reads host environment variables.
	Lookup config.LookupFunc
	// ProjectRoot is the build context and the /opt/agent mount.
	ProjectRoot string
	// WorkDir resolves relative VPN and hosts paths.
	WorkDir      string
	Image        string
	AgentCommand string
	GOOS         string
	// RuntimeName labels history records, e.g. "docker" or "podman".
	RuntimeName string
	TTY         bool
	// PersistAfterBuild saves the fingerprint only after a successful build. When false
	// the fingerprint is saved as soon as a rebuild is decided, so a failed build is not
	// retried on the next launch unless inputs change or a rebuild is forced.
	PersistAfterBuild bool
}

// Outcome summarizes one launch.
type Outcome struct {
	StartedAt   time.Time
	RunID       string
	Fingerprint string
	States      []State
	Duration    time.Duration
	ExitCode    int
	Built       bool
}

// Final returns the last state visited.
func (o *Outcome) Final() State {
	if len(o.States) == 0 {
		return StateCheckFingerprint
	}
	return o.States[len(o.States)-1]
}

func (o *Outcome) enter(ctx context.Context, s State) {
	o.States = append(o.States, s)
	logx.DebugState(ctx, "state", "enter", s.String(), o.RunID)
}

// Controller runs launches. It is not safe for concurrent use.
type Controller struct {
	registry ImageRegistry
	runner   Runner
	store    fingerprint.Store
	compute  FingerprintFunc
	history  HistoryRecorder
	recorder metrics.Recorder
	logger   *logx.Logger
	now      func() time.Time
	settings Settings
}

// Option configures a Controller.
type Option func(*Controller)

// WithFingerprintStore replaces the .last_build_hash file store.
func WithFingerprintStore(s fingerprint.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithFingerprintFunc replaces fingerprint.Compute.
func WithFingerprintFunc(f FingerprintFunc) Option {
	return func(c *Controller) { c.compute = f }
}

// WithHistory records every launch to h.
func WithHistory(h HistoryRecorder) Option {
	return func(c *Controller) { c.history = h }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller over the given registry and runner.
func New(settings Settings, registry ImageRegistry, runner Runner, opts ...Option) *Controller {
	if settings.Image == "" {
		settings.Image = launch.DefaultImage
	}
	if settings.ProjectRoot == "" {
		settings.ProjectRoot = "."
	}
	c := &Controller{
		settings: settings,
		registry: registry,
		runner:   runner,
		store:    fingerprint.NewFileStore(settings.ProjectRoot),
		compute:  fingerprint.Compute,
		recorder: metrics.Nop(),
		logger:   logx.NewLogger("launcher"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs one launch. The returned Outcome is always non-nil once cfg is valid;
// err is a *BuildError, a *RunError or a launcher-internal failure.
func (c *Controller) Run(ctx context.Context, cfg config.RunConfig) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{RunID: uuid.New().String(), StartedAt: c.now()}
	ctx = logx.WithComponent(ctx, "launcher")

	err := c.run(ctx, cfg, out)
	if err != nil {
		out.enter(ctx, StateFailed)
		out.ExitCode = ExitCode(err)
	} else {
		out.enter(ctx, StateSuccess)
	}
	out.Duration = c.now().Sub(out.StartedAt)

	c.recorder.ObserveRun(out.ExitCode, out.Duration)
	c.recordHistory(ctx, cfg, out, err)
	logx.Debug(ctx, "state", "run %s visited %s", out.RunID, formatStates(out.States))

	return out, err
}

func (c *Controller) run(ctx context.Context, cfg config.RunConfig, out *Outcome) error {
	out.enter(ctx, StateCheckFingerprint)
	build, err := c.checkFingerprint(ctx, cfg, out)
	if err != nil {
		return err
	}

	if build {
		out.enter(ctx, StateBuild)
		if err := c.build(ctx); err != nil {
			return err
		}
		out.Built = true
		if c.settings.PersistAfterBuild {
			if err := c.store.Save(out.Fingerprint); err != nil {
				c.logger.Warn("Image built but fingerprint not saved: %v", err)
			}
		}
	} else {
		out.enter(ctx, StateSkipBuild)
		c.logger.Info("Configuration unchanged, skipping build of %s", c.settings.Image)
	}

	out.enter(ctx, StateInvoke)
	return c.invoke(ctx, cfg, out)
}

func (c *Controller) checkFingerprint(ctx context.Context, cfg config.RunConfig, out *Outcome) (bool, error) {
	current, err := c.compute(c.settings.ProjectRoot)
	if err != nil {
		return false, fmt.Errorf("failed to compute configuration fingerprint: %w", err)
	}
	out.Fingerprint = current

	decision, err := fingerprint.Decide(c.store, current, cfg.ForceBuild, !c.settings.PersistAfterBuild)
	if err != nil {
		return false, fmt.Errorf("fingerprint state: %w", err)
	}
	logx.Debug(ctx, "fingerprint", "current=%s persisted=%s rebuild=%t", current, decision.Persisted, decision.Rebuild)

	switch {
	case decision.Forced:
		c.logger.Info("Rebuild forced")
		return true, nil
	case decision.FirstRun:
		c.logger.Info("No previous build recorded, building %s", c.settings.Image)
		return true, nil
	case decision.Rebuild:
		c.logger.Info("Configuration changed, rebuilding %s", c.settings.Image)
		return true, nil
	}

	exists, err := c.registry.ImageExists(ctx, c.settings.Image)
	if err != nil {
		c.logger.Warn("Could not inspect image %s, assuming absent: %v", c.settings.Image, err)
		return true, nil
	}
	if !exists {
		c.logger.Info("Image %s not found, building", c.settings.Image)
		return true, nil
	}
	return false, nil
}

func (c *Controller) build(ctx context.Context) error {
	start := c.now()
	err := c.registry.Build(ctx, c.settings.Image, c.settings.ProjectRoot)
	c.recorder.ObserveBuild(err == nil, c.now().Sub(start))
	if err != nil {
		return &BuildError{Image: c.settings.Image, Err: err}
	}
	c.logger.Info("Built image %s", c.settings.Image)
	return nil
}

func (c *Controller) invoke(ctx context.Context, cfg config.RunConfig, out *Outcome) error {
	spec := launch.Render(cfg, launch.HostEnv{
		Lookup:       c.settings.Lookup,
		ProjectRoot:  c.settings.ProjectRoot,
		WorkDir:      c.settings.WorkDir,
		GOOS:         c.settings.GOOS,
		Image:        c.settings.Image,
		AgentCommand: c.settings.AgentCommand,
		TTY:          c.settings.TTY,
	})
	c.logger.Info("Launching isolated run %s: %s", out.RunID, strings.Join(spec.Redacted(), " "))

	code, err := c.runner.Run(ctx, &spec)
	out.ExitCode = code
	if err != nil {
		if code <= 0 {
			code = 1
		}
		return &RunError{ExitCode: code, Err: err}
	}
	if code != 0 {
		return &RunError{ExitCode: code}
	}
	return nil
}

func (c *Controller) recordHistory(ctx context.Context, cfg config.RunConfig, out *Outcome, runErr error) {
	if c.history == nil {
		return
	}
	rec := &persistence.LaunchRecord{
		RunID:       out.RunID,
		Target:      cfg.Target,
		Mode:        cfg.EffectiveMode(),
		Steps:       cfg.Steps,
		Fingerprint: out.Fingerprint,
		Built:       out.Built,
		ExitCode:    out.ExitCode,
		Outcome:     outcomeLabel(runErr),
		Runtime:     c.settings.RuntimeName,
		StartedAt:   out.StartedAt,
		FinishedAt:  out.StartedAt.Add(out.Duration),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// History must not mask the launch result, and an interrupted launch is still recorded.
	if err := c.history.RecordLaunch(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("Failed to record launch %s: %v", out.RunID, err)
	}
}

func outcomeLabel(err error) string {
	var buildErr *BuildError
	var runErr *RunError
	switch {
	case err == nil:
		return persistence.OutcomeSuccess
	case errors.As(err, &buildErr):
		return persistence.OutcomeBuildFailed
	case errors.As(err, &runErr):
		return persistence.OutcomeFailed
	default:
		return persistence.OutcomeError
	}
}

func formatStates(states []State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}
