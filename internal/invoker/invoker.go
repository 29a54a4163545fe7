// Package invoker runs netsh commands synchronously, captures their output,
// and classifies the outcome.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/capture"
)

// Mode selects how a command reaches netsh
type Mode string

const (
	// ModeShell hands the rendered command line to a shell (powershell -Command)
	ModeShell Mode = "shell"
	// ModeDirect executes the command binary with its arguments, no shell involved
	ModeDirect Mode = "direct"
)

const (
	DefaultShell     = "powershell"
	DefaultShellFlag = "-Command"
	DefaultMaxOutput = 1 << 20
)

// ParseMode validates a configured execution mode. Empty means ModeShell.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeShell:
		return ModeShell, nil
	case ModeDirect:
		return ModeDirect, nil
	default:
		return "", fmt.Errorf("unknown execution mode: %s", s)
	}
}

// Options configures an Invoker
type Options struct {
	Mode      Mode
	Shell     string // shell binary used in ModeShell
	ShellFlag string // flag preceding the command line, e.g. -Command
	MaxOutput int    // bytes kept per stream
}

// Invoker executes one external command at a time
type Invoker struct {
	mode      Mode
	shell     string
	shellFlag string
	maxOutput int
}

// New creates an Invoker, filling unset options with defaults
func New(opts Options) *Invoker {
	inv := &Invoker{
		mode:      opts.Mode,
		shell:     opts.Shell,
		shellFlag: opts.ShellFlag,
		maxOutput: opts.MaxOutput,
	}
	if inv.mode == "" {
		inv.mode = ModeShell
	}
	if inv.shell == "" {
		inv.shell = DefaultShell
	}
	if inv.shellFlag == "" {
		inv.shellFlag = DefaultShellFlag
	}
	if inv.maxOutput <= 0 {
		inv.maxOutput = DefaultMaxOutput
	}
	return inv
}

// Argv returns the process arguments used to run cmd
func (i *Invoker) Argv(cmd capture.Command) []string {
	if i.mode == ModeDirect {
		return append([]string{cmd.Name}, cmd.Args...)
	}
	return []string{i.shell, i.shellFlag, cmd.String()}
}

// Invoke runs cmd and blocks until it exits. It never returns nil; launch
// failures are reported through Result.Err.
func (i *Invoker) Invoke(ctx context.Context, cmd capture.Command, label string) *Result {
	argv := i.Argv(cmd)
	res := &Result{
		Label:     label,
		Command:   cmd.String(),
		Argv:      argv,
		StartTime: time.Now(),
	}

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &limitWriter{buf: &stdout, limit: i.maxOutput}
	c.Stderr = &limitWriter{buf: &stderr, limit: i.maxOutput}

	runErr := c.Run()
	res.EndTime = time.Now()
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.Truncated = stdout.Len() >= i.maxOutput || stderr.Len() >= i.maxOutput

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) && c.ProcessState == nil {
		res.ExitCode = -1
		res.Status = "not started"
		res.Err = &LaunchError{Argv: argv, Err: runErr}
		return res
	}
	res.ExitCode = c.ProcessState.ExitCode()
	res.Status = c.ProcessState.String()
	return res
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
