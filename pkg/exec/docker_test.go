package exec

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strix/pkg/config"
	"strix/pkg/launch"
)

// scriptedExec records every command and answers from a fixed result.
type scriptedExec struct {
	calls  [][]string
	opts   []*Opts
	result Result
	err    error
}

func (s *scriptedExec) Run(_ context.Context, cmd []string, opts *Opts) (Result, error) {
	s.calls = append(s.calls, cmd)
	s.opts = append(s.opts, opts)
	return s.result, s.err
}

func (s *scriptedExec) Name() ExecutorType {
	return "scripted"
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		err     error
		want    bool
		wantErr bool
	}{
		{name: "present", result: Result{Stdout: "3f2a1b0c9d8e\n"}, want: true},
		{name: "absent", result: Result{Stdout: "\n"}, want: false},
		{name: "daemon down", result: Result{ExitCode: 1, Stderr: "Cannot connect"}, wantErr: true},
		{name: "cli missing", err: errors.New("exec: not found"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &scriptedExec{result: tt.result, err: tt.err}
			rt := NewDockerRuntime(WithExecutor(fake), WithCommand("docker"))

			got, err := rt.ImageExists(context.Background(), "strix-agent")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.Len(t, fake.calls, 1)
			assert.Equal(t, []string{"docker", "images", "-q", "strix-agent"}, fake.calls[0])
		})
	}
}

func TestBuild(t *testing.T) {
	fake := &scriptedExec{}
	rt := NewDockerRuntime(WithExecutor(fake), WithCommand("podman"), WithBuildOutput(io.Discard))

	require.NoError(t, rt.Build(context.Background(), "strix-agent", "/srv/strix"))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"podman", "build", "--platform=linux/amd64", "-t", "strix-agent", "/srv/strix"}, fake.calls[0])
	assert.Contains(t, fake.opts[0].Env, "DOCKER_BUILDKIT=1")
	assert.Equal(t, DefaultBuildTimeout, fake.opts[0].Timeout)
}

func TestBuild_Failure(t *testing.T) {
	fake := &scriptedExec{result: Result{ExitCode: 2}}
	rt := NewDockerRuntime(WithExecutor(fake), WithCommand("docker"), WithBuildOutput(io.Discard))

	err := rt.Build(context.Background(), "strix-agent", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 2")
}

func TestRun_PropagatesExitCode(t *testing.T) {
	fake := &scriptedExec{result: Result{ExitCode: 3}}
	rt := NewDockerRuntime(WithExecutor(fake), WithCommand("docker"))

	spec := launch.Render(config.RunConfig{Target: "example.com", Steps: 1, TimeoutMultiplier: 1}, launch.HostEnv{
		ProjectRoot: "/srv/strix",
		GOOS:        "darwin",
		Lookup:      func(string) (string, bool) { return "", false },
	})

	code, err := rt.Run(context.Background(), &spec, Stdio{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "docker", fake.calls[0][0])
	assert.Equal(t, spec.Args(), fake.calls[0][1:])
}

func TestRun_StartFailure(t *testing.T) {
	fake := &scriptedExec{result: Result{ExitCode: -1}, err: errors.New("exec: \"docker\": executable file not found")}
	rt := NewDockerRuntime(WithExecutor(fake), WithCommand("docker"))

	spec := launch.Spec{Image: "strix-agent"}
	code, err := rt.Run(context.Background(), &spec, Stdio{})
	require.Error(t, err)
	assert.Equal(t, -1, code)
}
