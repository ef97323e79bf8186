package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"strix/pkg/config"
	"strix/pkg/launch"
)

const banner = `
   _____ __        _
  / ___// /_______(_)  __
  \__ \/ __/ ___/ / |/_/
 ___/ / /_/ /  / />  <
/____/\__/_/  /_/_/|_|
STRIX | LLM Recon Agent
`

const usageHeader = `Usage: strix [flags] <target>

Build (when needed) and run the recon agent against <target> (IP, domain or URL)
inside an isolated container.

Examples:
  strix 10.10.11.58
  strix --layer 4 example.com
  strix --interactive --timeout 1.5 https://target.edu
  strix --layer 4 --ovpn vpn.ovpn --hosts hosts.txt target.com
  strix --force-build 10.10.11.58

Flags:
`

// errHelp is returned when usage was requested and printed.
var errHelp = errors.New("help requested")

// options is the parsed launcher command line.
type options struct {
	run           config.RunConfig
	projectDir    string
	image         string
	historyDB     string
	metricsFile   string
	showRun       string
	debugDomains  []string
	history       bool
	skipPreflight bool
	showVersion   bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("strix", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// run
	fs.IntVar(&opts.run.Steps, "layer", config.DefaultSteps, fmt.Sprintf("Number of layers to execute [%d-%d]", config.MinSteps, config.MaxSteps))
	fs.StringVar(&opts.run.VPNFile, "ovpn", "", "OpenVPN .ovpn file to mount into the container")
	fs.StringVar(&opts.run.HostsFile, "hosts", "", "Custom hosts file to mount into the container")
	fs.BoolVar(&opts.run.Interactive, "interactive", false, "Run in interactive LLM-assisted mode")
	fs.Float64Var(&opts.run.TimeoutMultiplier, "timeout", config.DefaultTimeoutMultiplier, "Timeout multiplier")
	fs.BoolVar(&opts.run.TestMode, "test", false, "Run in test mode")
	fs.BoolVar(&opts.run.ForceBuild, "force-build", false, "Force rebuild of the agent image")

	// environment
	fs.StringVar(&opts.projectDir, "project-dir", ".", "Project root (build context, mounted at "+launch.AgentRoot+")")
	fs.StringVar(&opts.image, "image", launch.DefaultImage, "Agent image name")
	fs.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip host checks before building and running")

	// bookkeeping
	fs.BoolVar(&opts.history, "history", false, "Print recent launches and exit")
	fs.StringVar(&opts.showRun, "show", "", "Print the recorded launch with this run ID and exit")
	fs.StringVar(&opts.historyDB, "history-db", "", "Launch history database (default <project-dir>/.strix/history.db)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.StringSliceVar(&opts.debugDomains, "debug", nil, "Enable debug logging for these domains (state,fingerprint,backend or all)")

	var showHelp bool
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
	if opts.showVersion || opts.history || opts.showRun != "" {
		return opts, nil
	}

	switch fs.NArg() {
	case 1:
		opts.run.Target = fs.Arg(0)
	case 0:
		fs.Usage()
		return nil, errors.New("missing target")
	default:
		return nil, fmt.Errorf("expected exactly one target, got %d", fs.NArg())
	}

	opts.run.Mode = config.DefaultMode
	if err := opts.run.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
