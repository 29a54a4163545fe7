package invoker

import (
	"fmt"
	"strings"
	"time"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/logger"
)

// Result holds the outcome of one external invocation.
type Result struct {
	Label     string    // caller supplied description of the step
	Command   string    // rendered netsh command line
	Argv      []string  // process arguments actually executed
	ExitCode  int       // process exit code, -1 when the process never started
	Status    string    // raw exit indicator reported by the OS
	Stdout    []byte    // captured stdout (may be truncated)
	Stderr    []byte    // captured stderr (may be truncated)
	Truncated bool      // true if output exceeded the size cap
	Err       error     // *LaunchError when the process could not be started
	StartTime time.Time // when the process was launched
	EndTime   time.Time // when the process exited
}

// Launched reports whether the process was started at all
func (r *Result) Launched() bool {
	return r.Err == nil
}

// Succeeded reports whether the process ran and exited with status zero
func (r *Result) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// LaunchError means the command interpreter or binary could not be started.
// It points at the host environment rather than at the capture itself.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// CommandError means the process ran and reported failure
type CommandError struct {
	Label    string
	Command  string
	ExitCode int
	Status   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %q returned %s", e.Label, e.Command, e.Status)
}

// Classify logs the outcome of r and returns nil on success, the
// *LaunchError if the process never started, or a *CommandError.
func Classify(log *logger.Logger, r *Result) error {
	if r.Succeeded() {
		log.Info("[capture] netsh command executed successfully: %s", r.Label)
		return nil
	}
	if !r.Launched() {
		log.Error("[capture] %s: could not launch command interpreter: %v", r.Label, r.Err)
		return r.Err
	}

	log.Error("[capture] %s: netsh command failed with %s", r.Label, r.Status)
	if len(r.Stderr) > 0 {
		log.Error("[capture] stderr: %s", r.Stderr)
	}
	if len(r.Stdout) > 0 {
		log.Error("[capture] stdout: %s", r.Stdout)
	}
	return &CommandError{
		Label:    r.Label,
		Command:  r.Command,
		ExitCode: r.ExitCode,
		Status:   r.Status,
	}
}
