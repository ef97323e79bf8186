// Package preflight validates, before anything is built or run, that the host can
// launch an isolated run: the container runtime answers, the files to be mounted exist,
// and the local model backend is reachable.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"strix/pkg/config"
)

// Check identifies one preflight check.
type Check string

// Check constants.
const (
	CheckRuntime   Check = "runtime"
	CheckVPNFile   Check = "ovpn"
	CheckHostsFile Check = "hosts"
	CheckBackend   Check = "backend"
)

// CheckResult represents the outcome of a single preflight check.
type CheckResult struct {
	Error   error
	Message string
	Check   Check
	Passed  bool
	// Advisory results never fail the run.
	Advisory bool
}

// Results contains all preflight check results.
type Results struct {
	Summary string
	Checks  []CheckResult
	Passed  bool
}

// RuntimeProber reports whether the container CLI and its daemon are usable.
type RuntimeProber interface {
	Available(ctx context.Context) bool
	Command() string
}

// Inputs are the facts the checks inspect.
type Inputs struct {
	Runtime RuntimeProber
	// HTTPClient is used for the backend probe; nil means a short-timeout default.
	HTTPClient *http.Client
	Lookup     config.LookupFunc
	WorkDir    string
	Run        config.RunConfig
}

// Required lists the checks that apply to in.
func Required(in Inputs) []Check {
	checks := []Check{CheckRuntime}
	if in.Run.VPNFile != "" {
		checks = append(checks, CheckVPNFile)
	}
	if in.Run.HostsFile != "" {
		checks = append(checks, CheckHostsFile)
	}
	if backendTag(in.Lookup) == string(config.ProviderOllama) {
		checks = append(checks, CheckBackend)
	}
	return checks
}

// Run executes every required check. Results.Passed is false only when a non-advisory
// check failed.
func Run(ctx context.Context, in Inputs) *Results {
	required := Required(in)
	results := &Results{
		Checks: make([]CheckResult, 0, len(required)),
		Passed: true,
	}

	failed := 0
	for _, check := range required {
		result := runCheck(ctx, check, in)
		results.Checks = append(results.Checks, result)
		if !result.Passed && !result.Advisory {
			results.Passed = false
			failed++
		}
	}

	if results.Passed {
		results.Summary = fmt.Sprintf("All %d preflight checks passed", len(results.Checks))
	} else {
		results.Summary = fmt.Sprintf("%d of %d preflight checks failed", failed, len(results.Checks))
	}
	return results
}

func runCheck(ctx context.Context, check Check, in Inputs) CheckResult {
	switch check {
	case CheckRuntime:
		return checkRuntime(ctx, in.Runtime)
	case CheckVPNFile:
		return checkMountFile(CheckVPNFile, in.WorkDir, in.Run.VPNFile)
	case CheckHostsFile:
		return checkMountFile(CheckHostsFile, in.WorkDir, in.Run.HostsFile)
	case CheckBackend:
		return checkBackend(ctx, in.Lookup, in.HTTPClient)
	default:
		return CheckResult{Check: check, Message: "unknown check", Error: fmt.Errorf("unknown check %q", check)}
	}
}

func backendTag(lookup config.LookupFunc) string {
	if lookup != nil {
		if v, ok := lookup(config.EnvBackend); ok && v != "" {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return string(config.DefaultProvider)
}
