// Command strix-agent is the in-container entrypoint: it resolves the backend
// configuration and drives the multi-step recon workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"strix/pkg/config"
	"strix/pkg/llm"
	"strix/pkg/llmerrors"
	"strix/pkg/logx"
	"strix/pkg/metrics"
	"strix/pkg/version"
	"strix/pkg/workflow"
)

const banner = `
 STRIX | LLM-based Autonomous Recon Agent
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// run returns 1 on usage or configuration errors and 0 otherwise. Step failures are
// visible in the report, not in the exit code.
func run(ctx context.Context, args []string, lookup config.LookupFunc, stdout, stderr io.Writer) int {
	fmt.Fprint(stdout, banner)

	a, err := parseAgentArgs(args, stderr)
	switch {
	case errors.Is(err, errHelp):
		return 0
	case errors.Is(err, errVersion):
		fmt.Fprint(stdout, version.String("strix-agent"))
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "[!] %v\n", err)
		return 1
	}

	cfg, err := config.ResolveBackend(a.configPath, lookup)
	if err != nil {
		fmt.Fprintf(stderr, "[!] Configuration error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "[*] Using provider: %s\n", cfg.Provider)
	fmt.Fprintf(stdout, "[*] Ollama Host: %s\n", cfg.OllamaHost)
	if cfg.APIKey != "" {
		fmt.Fprintln(stdout, "[*] API Key detected (hidden)")
	}

	logger := logx.NewLogger("agent")

	var recorder metrics.Recorder = metrics.Nop()
	var prom *metrics.PrometheusRecorder
	if a.metricsFile != "" {
		prom = metrics.NewPrometheusRecorder()
		recorder = prom
	}

	clientOpts := []llm.Option{llm.WithRecorder(recorder)}
	if tc, tcErr := llm.NewTokenCounter(); tcErr != nil {
		logger.Warn("Token counting unavailable, prompts will not be budgeted: %v", tcErr)
	} else {
		clientOpts = append(clientOpts, llm.WithTokenCounter(tc))
	}

	client, err := llm.NewClient(cfg, clientOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "[!] Configuration error: %v\n", err)
		return 1
	}

	executor := workflow.NewExecutor(client, a.target,
		workflow.WithInteractive(a.interactive),
		workflow.WithMode(a.mode),
		workflow.WithReport(stdout),
		workflow.WithRecorder(recorder),
	)

	results, err := executor.Run(ctx, a.steps)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "[!] %v\n", err)
		return 1
	}
	if failed := workflow.Failed(results); failed > 0 {
		logger.Warn("%d of %d steps failed", failed, len(results))
		if backendUnreachable(results) {
			fmt.Fprintf(stderr, "[!] %s backend was unreachable, check %s\n", cfg.Provider, endpointVar(cfg.Provider))
		}
	}

	if prom != nil {
		if err := metrics.WriteTextfile(a.metricsFile, prom.Gatherer()); err != nil {
			logger.Warn("Failed to write metrics: %v", err)
		}
	}
	return 0
}

func backendUnreachable(results []workflow.StepResult) bool {
	for _, r := range results {
		if llmerrors.IsBackendUnreachable(r.Err) {
			return true
		}
	}
	return false
}

// endpointVar names the environment variable that points the provider at its server.
func endpointVar(p config.Provider) string {
	if p == config.ProviderOpenAI {
		return config.EnvBaseURL
	}
	return config.EnvOllamaURL
}
