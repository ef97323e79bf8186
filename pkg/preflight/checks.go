package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"strix/pkg/config"
	"strix/pkg/launch"
)

const backendProbeTimeout = 5 * time.Second

// checkRuntime verifies the container CLI exists and its daemon is running.
func checkRuntime(ctx context.Context, rt RuntimeProber) CheckResult {
	result := CheckResult{Check: CheckRuntime}
	if rt == nil {
		result.Message = "no container runtime configured"
		result.Error = fmt.Errorf("nil runtime")
		return result
	}
	if !rt.Available(ctx) {
		result.Message = fmt.Sprintf("%s is not running or not installed", rt.Command())
		result.Error = fmt.Errorf("%s unavailable", rt.Command())
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%s is running", rt.Command())
	return result
}

// checkMountFile verifies a file that will be bind-mounted exists and is a regular file.
// Docker would otherwise create an empty directory in its place.
func checkMountFile(check Check, workDir, path string) CheckResult {
	result := CheckResult{Check: check}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, path)
	}

	info, err := os.Stat(abs)
	switch {
	case err != nil:
		result.Message = fmt.Sprintf("%s is not accessible", abs)
		result.Error = err
	case !info.Mode().IsRegular():
		result.Message = fmt.Sprintf("%s is not a regular file", abs)
		result.Error = fmt.Errorf("%s: not a regular file", abs)
	default:
		result.Passed = true
		result.Message = fmt.Sprintf("%s found", abs)
	}
	return result
}

// checkBackend probes the local model server the container will use. The container
// reaches the host through host.docker.internal, which the host itself may not resolve,
// so the probe targets localhost instead. Advisory: the server may only be reachable
// from inside the container.
func checkBackend(ctx context.Context, lookup config.LookupFunc, hc *http.Client) CheckResult {
	result := CheckResult{Check: CheckBackend, Advisory: true}

	raw := launch.DefaultOllamaURL
	if lookup != nil {
		if v, ok := lookup(config.EnvOllamaURL); ok && v != "" {
			raw = v
		}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		result.Message = fmt.Sprintf("invalid %s %q", config.EnvOllamaURL, raw)
		result.Error = fmt.Errorf("invalid url %q", raw)
		return result
	}
	if strings.EqualFold(u.Hostname(), "host.docker.internal") {
		u.Host = strings.Replace(u.Host, u.Hostname(), "localhost", 1)
	}

	if hc == nil {
		hc = &http.Client{Timeout: backendProbeTimeout}
	}
	ctx, cancel := context.WithTimeout(ctx, backendProbeTimeout)
	defer cancel()

	v, err := api.NewClient(u, hc).Version(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Ollama not reachable at %s", u)
		result.Error = err
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("Ollama %s reachable at %s", v, u)
	return result
}
