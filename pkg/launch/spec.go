// Package launch renders the parameters of an isolated agent run: mounts, environment,
// capabilities and the command, and turns them into a docker run argument list.
package launch

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"strix/pkg/config"
)

// Container-side layout.
const (
	AgentRoot        = "/opt/agent"
	VPNMountPath     = AgentRoot + "/ovpn_config.ovpn"
	HostsMountPath   = AgentRoot + "/custom_hosts"
	DefaultImage     = "strix-agent"
	DefaultAgentCmd  = "strix-agent"
	DockerHostGW     = "host.docker.internal:host-gateway"
	DefaultOllamaURL = "http://host.docker.internal:11434"
	// DummyAPIKey keeps in-container key checks satisfied for the local model.
	DummyAPIKey = "dummy_for_local_ollama"
	// TimeoutUnitSeconds is the per-multiplier budget exported as TIMEOUT.
	TimeoutUnitSeconds = 180
)

// Variables exported to the isolated run.
const (
	EnvTargetHost  = "TARGET_HOST"
	EnvTargetMode  = "TARGET_MODE"
	EnvSteps       = "STEPS"
	EnvTimeout     = "TIMEOUT"
	EnvInteractive = "INTERACTIVE"
	EnvTestMode    = "TEST_MODE"
	EnvVPNFile     = "OVPN_FILE"
	EnvHostsFile   = "CUSTOM_HOSTS_FILE"
)

// passthrough lists backend variables copied into the run only when set on the host.
var passthrough = []string{ //nolint:gochecknoglobals
	config.EnvModel,
	config.EnvBaseURL,
	config.EnvContextLength,
	config.EnvRemoteLive,
}

// Mount binds a host path into the container.
type Mount struct {
	Source string
	Target string
}

// EnvVar is one KEY=VALUE assignment.
type EnvVar struct {
	Key   string
	Value string
}

func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

// Spec is the fully resolved isolated-run invocation.
type Spec struct {
	Image      string
	Command    []string
	Mounts     []Mount
	Env        []EnvVar
	CapAdd     []string
	Devices    []string
	ExtraHosts []string
	Platform   string
	Remove     bool
	Stdin      bool
	TTY        bool
}

// Lookup returns the value of env key k, if present.
func (s *Spec) Lookup(k string) (string, bool) {
	for _, e := range s.Env {
		if e.Key == k {
			return e.Value, true
		}
	}
	return "", false
}

// HostEnv is the ambient host state Render depends on.
type HostEnv struct {
	// Lookup reads host environment variables; os.LookupEnv in production.
	Lookup config.LookupFunc
	// ProjectRoot is mounted at /opt/agent.
	ProjectRoot string
	// WorkDir resolves relative VPN and hosts paths.
	WorkDir string
	// GOOS selects platform quirks; defaults to runtime.GOOS.
	GOOS string
	// Image defaults to DefaultImage, AgentCommand to DefaultAgentCmd.
	Image        string
	AgentCommand string
	// TTY allocates a pseudo-terminal when the launcher runs attached to one.
	TTY bool
}

// Render maps cfg and the host environment to a Spec. It performs no I/O.
func Render(cfg config.RunConfig, host HostEnv) Spec {
	lookup := host.Lookup
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	hostValue := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}
	goos := host.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	image := host.Image
	if image == "" {
		image = DefaultImage
	}
	agentCmd := host.AgentCommand
	if agentCmd == "" {
		agentCmd = DefaultAgentCmd
	}

	spec := Spec{
		Image:   image,
		Remove:  true,
		Stdin:   true,
		TTY:     host.TTY,
		CapAdd:  []string{"NET_ADMIN"},
		Devices: []string{"/dev/net/tun"},
		Mounts:  []Mount{{Source: host.ProjectRoot, Target: AgentRoot}},
	}

	// On Linux hosts host.docker.internal only resolves through host-gateway.
	if goos == "linux" {
		spec.ExtraHosts = append(spec.ExtraHosts, DockerHostGW)
	}

	env := []EnvVar{
		{config.EnvBackend, hostValue(config.EnvBackend, string(config.DefaultProvider))},
		{config.EnvOllamaURL, hostValue(config.EnvOllamaURL, DefaultOllamaURL)},
	}
	for _, key := range passthrough {
		if v, ok := lookup(key); ok && v != "" {
			env = append(env, EnvVar{key, v})
		}
	}
	env = append(env,
		EnvVar{EnvTargetHost, cfg.Target},
		EnvVar{EnvTargetMode, cfg.EffectiveMode()},
	)

	if cfg.VPNFile != "" {
		spec.Mounts = append(spec.Mounts, Mount{Source: absolute(host.WorkDir, cfg.VPNFile), Target: VPNMountPath})
		env = append(env, EnvVar{EnvVPNFile, VPNMountPath})
	}
	if cfg.HostsFile != "" {
		spec.Mounts = append(spec.Mounts, Mount{Source: absolute(host.WorkDir, cfg.HostsFile), Target: HostsMountPath})
		env = append(env, EnvVar{EnvHostsFile, HostsMountPath})
	}
	if cfg.Interactive {
		env = append(env, EnvVar{EnvInteractive, "true"})
	}
	if cfg.TestMode {
		env = append(env, EnvVar{EnvTestMode, "true"})
	}

	env = append(env,
		EnvVar{EnvSteps, strconv.Itoa(cfg.Steps)},
		EnvVar{EnvTimeout, strconv.Itoa(int(cfg.TimeoutMultiplier * TimeoutUnitSeconds))},
		EnvVar{config.EnvAPIKey, hostValue(config.EnvAPIKey, DummyAPIKey)},
	)
	spec.Env = env

	interactive := "0"
	if cfg.Interactive {
		interactive = "1"
	}
	spec.Command = []string{agentCmd, cfg.Target, strconv.Itoa(cfg.Steps), interactive, cfg.EffectiveMode()}

	return spec
}

func absolute(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workDir, path)
}

// Args renders the docker run argument list (without the leading "docker").
func (s *Spec) Args() []string {
	args := []string{"run"}
	if s.Remove {
		args = append(args, "--rm")
	}
	switch {
	case s.Stdin && s.TTY:
		args = append(args, "-it")
	case s.Stdin:
		args = append(args, "-i")
	case s.TTY:
		args = append(args, "-t")
	}
	if s.Platform != "" {
		args = append(args, "--platform", s.Platform)
	}
	for _, c := range s.CapAdd {
		args = append(args, "--cap-add="+c)
	}
	for _, d := range s.Devices {
		args = append(args, "--device", d)
	}
	for _, h := range s.ExtraHosts {
		args = append(args, "--add-host", h)
	}
	for _, m := range s.Mounts {
		args = append(args, "-v", fmt.Sprintf("%s:%s", m.Source, m.Target))
	}
	for _, e := range s.Env {
		args = append(args, "-e", e.String())
	}
	args = append(args, s.Image)
	args = append(args, s.Command...)
	return args
}

// Redacted returns Args with secret values masked, for logging.
func (s *Spec) Redacted() []string {
	masked := *s
	masked.Env = make([]EnvVar, len(s.Env))
	for i, e := range s.Env {
		if e.Key == config.EnvAPIKey && e.Value != DummyAPIKey {
			e.Value = "****"
		}
		masked.Env[i] = e
	}
	return masked.Args()
}
