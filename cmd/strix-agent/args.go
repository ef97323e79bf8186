package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	flag "github.com/spf13/pflag"

	"strix/pkg/config"
)

const usageHeader = `Usage: strix-agent [flags] <target> [steps] [interactive 0|1] [mode]

Run the recon workflow against <target> using the configured language-model backend.

Flags:
`

var (
	errHelp    = errors.New("help requested")
	errVersion = errors.New("version requested")
)

type agentArgs struct {
	configPath  string
	metricsFile string
	target      string
	mode        string
	steps       int
	interactive bool
}

func parseAgentArgs(args []string, stderr io.Writer) (*agentArgs, error) {
	a := &agentArgs{steps: config.DefaultSteps, mode: config.DefaultMode}
	fs := flag.NewFlagSet("strix-agent", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&a.configPath, "config", config.DefaultSettingsPath, "Backend settings file (YAML)")
	fs.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() {
		fmt.Fprint(stderr, usageHeader)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showHelp {
		fs.Usage()
		return nil, errHelp
	}
	if showVersion {
		return nil, errVersion
	}

	pos := fs.Args()
	if len(pos) < 1 || len(pos) > 4 {
		fs.Usage()
		return nil, fmt.Errorf("expected 1 to 4 positional arguments, got %d", len(pos))
	}
	a.target = pos[0]

	if len(pos) > 1 {
		n, err := strconv.Atoi(pos[1])
		if err != nil {
			return nil, fmt.Errorf("steps must be an integer: %q", pos[1])
		}
		a.steps = n
	}
	if a.steps < config.MinSteps {
		return nil, fmt.Errorf("steps must be at least %d, got %d", config.MinSteps, a.steps)
	}

	if len(pos) > 2 {
		n, err := strconv.Atoi(pos[2])
		if err != nil {
			return nil, fmt.Errorf("interactive must be 0 or 1: %q", pos[2])
		}
		a.interactive = n != 0
	}

	if len(pos) > 3 && pos[3] != "" {
		a.mode = pos[3]
	}
	return a, nil
}
