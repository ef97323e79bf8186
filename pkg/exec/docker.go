package exec

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"strix/pkg/launch"
	"strix/pkg/logx"
)

// Build and inspection defaults.
const (
	DefaultPlatform     = "linux/amd64"
	DefaultBuildTimeout = 30 * time.Minute
	inspectTimeout      = 30 * time.Second
)

// Stdio is the set of streams an isolated run is attached to.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// HostStdio attaches to the launcher's own terminal.
func HostStdio() Stdio {
	return Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// DockerRuntime builds the agent image and runs isolated agent containers through the
// docker (or podman) CLI.
type DockerRuntime struct {
	logger       *logx.Logger
	executor     Executor
	dockerCmd    string
	platform     string
	buildTimeout time.Duration
	buildOutput  io.Writer
}

// DockerOption configures a DockerRuntime.
type DockerOption func(*DockerRuntime)

// WithExecutor replaces the host executor used to invoke the CLI.
func WithExecutor(e Executor) DockerOption {
	return func(d *DockerRuntime) { d.executor = e }
}

// WithCommand forces the container CLI binary instead of auto-detecting it.
func WithCommand(cmd string) DockerOption {
	return func(d *DockerRuntime) { d.dockerCmd = cmd }
}

// WithBuildTimeout bounds image builds. Zero disables the bound.
func WithBuildTimeout(t time.Duration) DockerOption {
	return func(d *DockerRuntime) { d.buildTimeout = t }
}

// WithBuildOutput sends build progress to w instead of stderr.
func WithBuildOutput(w io.Writer) DockerOption {
	return func(d *DockerRuntime) { d.buildOutput = w }
}

// NewDockerRuntime creates a runtime backed by the local docker CLI.
func NewDockerRuntime(opts ...DockerOption) *DockerRuntime {
	d := &DockerRuntime{
		logger:       logx.NewLogger("docker"),
		executor:     NewLocalExec(),
		dockerCmd:    detectDockerCommand(),
		platform:     DefaultPlatform,
		buildTimeout: DefaultBuildTimeout,
		buildOutput:  os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// detectDockerCommand prefers docker and falls back to podman when only podman is installed.
func detectDockerCommand() string {
	if _, err := exec.LookPath("docker"); err != nil {
		if _, err := exec.LookPath("podman"); err == nil {
			return "podman"
		}
	}
	return "docker"
}

// Command returns the container CLI in use.
func (d *DockerRuntime) Command() string {
	return d.dockerCmd
}

// Available reports whether the CLI exists and its daemon answers.
func (d *DockerRuntime) Available(ctx context.Context) bool {
	if _, err := exec.LookPath(d.dockerCmd); err != nil {
		d.logger.Debug("Container CLI not found: %v", err)
		return false
	}
	result, err := d.executor.Run(ctx, []string{d.dockerCmd, "ps", "-q"}, &Opts{Timeout: 5 * time.Second})
	if err != nil || result.ExitCode != 0 {
		d.logger.Debug("Container daemon not available: %v %s", err, strings.TrimSpace(result.Stderr))
		return false
	}
	return true
}

// ImageExists reports whether image is present locally. An inspection failure is
// returned as an error; callers decide whether to treat it as absent.
func (d *DockerRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	result, err := d.executor.Run(ctx, []string{d.dockerCmd, "images", "-q", image}, &Opts{Timeout: inspectTimeout})
	if err != nil {
		return false, fmt.Errorf("failed to inspect image %s: %w", image, err)
	}
	if result.ExitCode != 0 {
		return false, fmt.Errorf("failed to inspect image %s: exit %d: %s",
			image, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return strings.TrimSpace(result.Stdout) != "", nil
}

// Build builds image from the Dockerfile in contextDir for the fixed platform.
func (d *DockerRuntime) Build(ctx context.Context, image, contextDir string) error {
	args := []string{d.dockerCmd, "build", "--platform=" + d.platform, "-t", image, contextDir}
	d.logger.Info("Building image %s from %s", image, contextDir)
	d.logger.Debug("Executing: %s", strings.Join(args, " "))

	result, err := d.executor.Run(ctx, args, &Opts{
		Env:     []string{"DOCKER_BUILDKIT=1"},
		Timeout: d.buildTimeout,
		Stdout:  d.buildOutput,
		Stderr:  d.buildOutput,
	})
	if err != nil {
		return fmt.Errorf("%s build failed: %w", d.dockerCmd, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s build failed with exit code %d", d.dockerCmd, result.ExitCode)
	}
	return nil
}

// RunArgs returns the full command line for spec.
func (d *DockerRuntime) RunArgs(spec *launch.Spec) []string {
	return append([]string{d.dockerCmd}, spec.Args()...)
}

// Run starts the isolated run described by spec, attached to stdio, and blocks until it
// exits. The container's exit code is returned; err is set only when the CLI could not
// be started or ctx was cancelled.
func (d *DockerRuntime) Run(ctx context.Context, spec *launch.Spec, stdio Stdio) (int, error) {
	d.logger.Debug("Executing: %s %s", d.dockerCmd, strings.Join(spec.Redacted(), " "))

	result, err := d.executor.Run(ctx, d.RunArgs(spec), &Opts{
		Stdin:  stdio.In,
		Stdout: stdio.Out,
		Stderr: stdio.Err,
	})
	if err != nil {
		return result.ExitCode, fmt.Errorf("%s run failed: %w", d.dockerCmd, err)
	}
	return result.ExitCode, nil
}

// Attached is a DockerRuntime bound to fixed stdio.
type Attached struct {
	rt    *DockerRuntime
	stdio Stdio
}

// Attach binds the runtime to stdio for callers that run one spec at a time.
func (d *DockerRuntime) Attach(stdio Stdio) *Attached {
	return &Attached{rt: d, stdio: stdio}
}

// Run starts spec attached to the bound stdio.
func (a *Attached) Run(ctx context.Context, spec *launch.Spec) (int, error) {
	return a.rt.Run(ctx, spec, a.stdio)
}
