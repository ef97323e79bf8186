// Command strix builds the agent image when its inputs changed and runs the recon agent
// against one target inside an isolated container.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"strix/internal/launcher"
	"strix/pkg/exec"
	"strix/pkg/logx"
	"strix/pkg/metrics"
	"strix/pkg/persistence"
	"strix/pkg/preflight"
	"strix/pkg/version"
)

const historyLimit = 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// run contains the launcher logic and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fmt.Fprint(stdout, banner)

	opts, err := parseArgs(args, stderr)
	if errors.Is(err, errHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "[!] %v\n", err)
		return 1
	}

	if opts.showVersion {
		fmt.Fprint(stdout, version.String("strix"))
		return 0
	}

	if len(opts.debugDomains) > 0 {
		domains := opts.debugDomains
		if slices.Contains(domains, "all") {
			domains = nil
		}
		logx.SetDebug(true)
		logx.SetDebugDomains(domains)
	}

	root, err := filepath.Abs(opts.projectDir)
	if err != nil {
		fmt.Fprintf(stderr, "[!] Invalid project directory: %v\n", err)
		return 1
	}
	if opts.historyDB == "" {
		opts.historyDB = filepath.Join(root, persistence.DefaultPath)
	}

	if opts.showRun != "" {
		if err := printLaunch(ctx, stdout, opts.historyDB, opts.showRun); err != nil {
			fmt.Fprintf(stderr, "[!] %v\n", err)
			return 1
		}
		return 0
	}

	if opts.history {
		if err := printHistory(ctx, stdout, opts.historyDB); err != nil {
			fmt.Fprintf(stderr, "[!] %v\n", err)
			return 1
		}
		return 0
	}

	return runLaunch(ctx, opts, root, stdout, stderr)
}

func runLaunch(ctx context.Context, opts *options, root string, stdout, stderr io.Writer) int {
	logger := logx.NewLogger("strix")

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "[!] Cannot determine working directory: %v\n", err)
		return 1
	}

	var recorder metrics.Recorder = metrics.Nop()
	var prom *metrics.PrometheusRecorder
	if opts.metricsFile != "" {
		prom = metrics.NewPrometheusRecorder()
		recorder = prom
	}

	runtimeCLI := exec.NewDockerRuntime(exec.WithBuildOutput(stdout))

	if !opts.skipPreflight {
		results := preflight.Run(ctx, preflight.Inputs{
			Runtime: runtimeCLI,
			Lookup:  os.LookupEnv,
			WorkDir: workDir,
			Run:     opts.run,
		})
		if !results.Passed {
			fmt.Fprint(stderr, preflight.FormatResults(results))
			return 1
		}
		logger.Info("%s", results.Summary)
		for _, c := range results.Checks {
			if !c.Passed {
				logger.Warn("%s: %s", c.Check, c.Message)
			}
		}
	}

	ctrlOpts := []launcher.Option{launcher.WithRecorder(recorder)}
	if store, err := persistence.Open(ctx, opts.historyDB); err != nil {
		logger.Warn("Launch history disabled: %v", err)
	} else {
		defer func() { _ = store.Close() }()
		ctrlOpts = append(ctrlOpts, launcher.WithHistory(store))
	}

	ctrl := launcher.New(launcher.Settings{
		Lookup:      os.LookupEnv,
		ProjectRoot: root,
		WorkDir:     workDir,
		Image:       opts.image,
		GOOS:        runtime.GOOS,
		RuntimeName: runtimeCLI.Command(),
		TTY:         isTerminal(),
	}, runtimeCLI, runtimeCLI.Attach(exec.HostStdio()), ctrlOpts...)

	fmt.Fprintf(stdout, "[*] Target: %s | layers: %d | interactive: %t\n",
		opts.run.Target, opts.run.Steps, opts.run.Interactive)

	outcome, err := ctrl.Run(ctx, opts.run)
	exitCode := launcher.ExitCode(err)

	var buildErr *launcher.BuildError
	var runErr *launcher.RunError
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "[*] Container finished successfully.")
	case errors.As(err, &buildErr):
		fmt.Fprintf(stderr, "[!] Image build failed: %v\n", buildErr.Err)
	case errors.As(err, &runErr):
		fmt.Fprintf(stderr, "[!] Container run failed with exit code %d\n", runErr.ExitCode)
	default:
		fmt.Fprintf(stderr, "[!] %v\n", err)
	}
	if outcome != nil {
		logger.Info("Run %s finished in %s (exit %d)", outcome.RunID, outcome.Duration.Round(time.Millisecond), exitCode)
	}

	if prom != nil {
		if err := metrics.WriteTextfile(opts.metricsFile, prom.Gatherer()); err != nil {
			logger.Warn("Failed to write metrics: %v", err)
		}
	}

	return exitCode
}

// isTerminal reports whether the launcher is attached to an interactive terminal, in
// which case the container gets a pseudo-TTY too.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printHistory(ctx context.Context, w io.Writer, dbPath string) error {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "No launches recorded yet.")
		return nil
	}

	store, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return logx.Wrap(err, "failed to read launch history")
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No launches recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN ID\tTARGET\tLAYERS\tBUILT\tOUTCOME\tEXIT\tDURATION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Target, r.Steps,
			r.Built, r.Outcome, r.ExitCode, r.Duration().Round(time.Second))
	}
	return tw.Flush()
}

func printLaunch(ctx context.Context, w io.Writer, dbPath, runID string) error {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("launch %s not found: no launches recorded yet", runID)
	}

	store, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r, err := store.GetLaunch(ctx, runID)
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("launch %s not found", runID)
	}
	if err != nil {
		return logx.Wrap(err, "failed to read launch history")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range [][2]string{
		{"Run ID", r.RunID},
		{"Target", r.Target},
		{"Mode", r.Mode},
		{"Layers", strconv.Itoa(r.Steps)},
		{"Runtime", r.Runtime},
		{"Fingerprint", r.Fingerprint},
		{"Built", strconv.FormatBool(r.Built)},
		{"Outcome", r.Outcome},
		{"Exit code", strconv.Itoa(r.ExitCode)},
		{"Error", r.Error},
		{"Started", r.StartedAt.Local().Format(time.DateTime)},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
	} {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}
