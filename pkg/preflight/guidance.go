package preflight

import (
	"fmt"
	"strings"
)

// FormatCheckError formats a failed check result with actionable guidance.
func FormatCheckError(check CheckResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("  %s: %s\n", check.Check, check.Message))
	sb.WriteString(fmt.Sprintf("    %s\n", getGuidance(check.Check)))

	return sb.String()
}

// FormatResults formats all preflight results for display.
func FormatResults(results *Results) string {
	var sb strings.Builder

	if results.Passed {
		sb.WriteString("Preflight checks passed\n")
	} else {
		sb.WriteString("Preflight checks failed\n\n")
		sb.WriteString("Failed checks:\n")
		for i := range results.Checks {
			if !results.Checks[i].Passed && !results.Checks[i].Advisory {
				sb.WriteString(FormatCheckError(results.Checks[i]))
			}
		}
		sb.WriteString("\n")
	}

	for i := range results.Checks {
		c := results.Checks[i]
		switch {
		case c.Passed:
			sb.WriteString(fmt.Sprintf("  [PASS] %s: %s\n", c.Check, c.Message))
		case c.Advisory:
			sb.WriteString(fmt.Sprintf("  [WARN] %s: %s\n", c.Check, c.Message))
			sb.WriteString(fmt.Sprintf("    %s\n", getGuidance(c.Check)))
		}
	}

	return sb.String()
}

// getGuidance returns actionable guidance for fixing a failed check.
func getGuidance(check Check) string {
	switch check {
	case CheckRuntime:
		return "Install Docker (or Podman) and ensure the daemon is running: https://docs.docker.com/get-docker/"

	case CheckVPNFile:
		return "Pass the path of an existing OpenVPN profile to --ovpn."

	case CheckHostsFile:
		return "Pass the path of an existing hosts file to --hosts."

	case CheckBackend:
		return "Install and start Ollama, then pull the configured model:\n" +
			"    ollama serve\n" +
			"    ollama pull llama2"

	default:
		return "Check the documentation for setup instructions."
	}
}
