package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"EnigmaNetz/Enigma-Netsh-Capture/config"
	collect_logs "EnigmaNetz/Enigma-Netsh-Capture/internal/collect_logs"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/logger"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/metadata"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/report"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/session"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/version"
)

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Enigma netsh capture - timed Windows packet capture

Usage: netsh-capture duration=<seconds> output=<path> maxsize=<MB> [config=<path>]
       netsh-capture collect-logs [config=<path>]
       netsh-capture --version|-v
       netsh-capture --help|-h

Starts "netsh trace start capture=yes", waits for the given number of
seconds, then runs "netsh trace stop". Must be run from an elevated prompt.

Arguments:
  duration=<seconds>  Capture length in whole seconds
  output=<path>       Trace file written by netsh (.etl)
  maxsize=<MB>        Maximum trace file size in MB
  config=<path>       Optional JSON or YAML configuration file

Commands:
  collect-logs        Package logs, config, netsh trace status and system info into a zip archive for support

Configuration:
  Without config=, the tool looks for netsh-capture.json in the ProgramData
  EnigmaSensor directory, then netsh-capture.json or netsh-capture.yaml in the
  working directory. Defaults are used when none is found. Set
  ENIGMA_LOG_LEVEL=debug to log the netsh command lines.

Example:
  netsh-capture duration=60 output=C:\captures\trace.etl maxsize=512
`)
}

// app holds the collaborators of one run so tests can replace them
type app struct {
	stdout      io.Writer
	stderr      io.Writer
	configPaths []string
	newInvoker  func(invoker.Options) session.Invoker
	sleeper     session.Sleeper
	now         func() time.Time
}

func newApp() *app {
	return &app{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		configPaths: config.DefaultPaths(),
		newInvoker:  func(opts invoker.Options) session.Invoker { return invoker.New(opts) },
		now:         time.Now,
	}
}

func main() {
	os.Exit(newApp().run(context.Background(), os.Args))
}

// run executes the tool and returns the process exit status
func (a *app) run(ctx context.Context, argv []string) int {
	program := "netsh-capture"
	if len(argv) > 0 {
		program = filepath.Base(argv[0])
		argv = argv[1:]
	}

	if len(argv) > 0 {
		switch argv[0] {
		case "--help", "-h":
			printHelp(a.stdout)
			return session.ExitOK
		case "--version", "-v":
			fmt.Fprintln(a.stdout, version.Version)
			return session.ExitOK
		}
	}

	cfg, err := a.loadConfig(argv)
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to load config: %v\n", err)
		return session.ExitCommandFailed
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to initialize logging: %v\n", err)
		return session.ExitCommandFailed
	}
	logCfg.Output = a.stderr
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to initialize logging: %v\n", err)
		return session.ExitCommandFailed
	}
	defer log.Close()

	invOpts, err := cfg.InvokerOptions()
	if err != nil {
		log.Error("Invalid trace configuration: %v", err)
		return session.ExitCommandFailed
	}
	inv := a.newInvoker(invOpts)

	if len(argv) > 0 && argv[0] == "collect-logs" {
		return a.collectLogs(ctx, cfg, inv, log)
	}

	if cfg.Path != "" {
		log.Debug("Loaded config from %s: %+v", cfg.Path, cfg.Logging)
	}

	sessionID := metadata.NewSessionID()
	log.Debug("[session] id %s", sessionID)

	controller := session.NewController(inv, a.sleeper, log, program)
	out := controller.Run(ctx, argv)

	if out.Kind != session.KindUsage && cfg.EnigmaAPI.Upload {
		a.report(ctx, cfg, report.NewRecord(sessionID, out, metadata.CollectHost()), log)
	}

	return out.ExitCode()
}

// loadConfig honours an explicit config=<path> token, otherwise searches the default paths
func (a *app) loadConfig(argv []string) (*config.Config, error) {
	for _, arg := range argv {
		if path, ok := strings.CutPrefix(arg, "config="); ok {
			return config.LoadConfig(path)
		}
	}
	return config.Discover(a.configPaths)
}

// report publishes the session record; failures are logged and do not change the exit status
func (a *app) report(ctx context.Context, cfg *config.Config, rec report.Record, log *logger.Logger) {
	reporter, err := report.NewSessionReporter(cfg.EnigmaAPI.Server, cfg.EnigmaAPI.APIKey, cfg.EnigmaAPI.Insecure)
	if err != nil {
		log.Error("[report] Failed to initialize session reporter: %v", err)
		return
	}
	defer reporter.Close()

	if err := reporter.Report(ctx, rec); err != nil {
		log.Error("[report] Session report failed: %v", err)
		return
	}
	log.Info("[report] Session %s reported to %s", rec.SessionID, cfg.EnigmaAPI.Server)
}

func (a *app) collectLogs(ctx context.Context, cfg *config.Config, inv session.Invoker, log *logger.Logger) int {
	zipName := fmt.Sprintf("netsh-capture-logs-%s.zip", a.now().Format("20060102-150405"))
	src := collect_logs.Sources{ConfigPath: cfg.Path, Invoker: inv}
	if cfg.Logging.File != "" {
		src.LogDir = filepath.Dir(cfg.Logging.File)
	}
	if err := collect_logs.CollectLogs(ctx, zipName, src); err != nil {
		log.Error("Failed to collect logs: %v", err)
		return session.ExitCommandFailed
	}
	fmt.Fprintf(a.stdout, "Created %s with logs, config, and diagnostics.\n", zipName)
	return session.ExitOK
}
