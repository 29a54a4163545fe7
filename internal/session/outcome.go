package session

import (
	"time"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/capture"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
)

// State is a step of the capture lifecycle
type State int

const (
	Idle State = iota
	Starting
	Capturing
	Stopping
	Done
	Failed
)

var stateNames = map[State]string{
	Idle:      "idle",
	Starting:  "starting",
	Capturing: "capturing",
	Stopping:  "stopping",
	Done:      "done",
	Failed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Kind classifies why a session failed
type Kind int

const (
	KindNone Kind = iota
	// KindUsage: launch arguments were incomplete or malformed, nothing ran
	KindUsage
	// KindLaunch: the command interpreter could not be started
	KindLaunch
	// KindCommand: netsh ran and reported failure
	KindCommand
)

var kindNames = map[Kind]string{
	KindNone:    "none",
	KindUsage:   "usage",
	KindLaunch:  "launch",
	KindCommand: "command",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Process exit statuses chosen by the entry point
const (
	ExitOK            = 0
	ExitCommandFailed = 1
	ExitLaunchFailed  = 2
)

// Outcome describes how a session ended
type Outcome struct {
	Request    capture.Request
	State      State
	FailedIn   State // state that was active when the session failed
	Kind       Kind
	Err        error
	Start      *invoker.Result
	Stop       *invoker.Result
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o *Outcome) fail(kind Kind, err error) *Outcome {
	o.FailedIn = o.State
	o.State = Failed
	o.Kind = kind
	o.Err = err
	return o
}

// Invocations returns the number of external commands the session issued
func (o *Outcome) Invocations() int {
	n := 0
	if o.Start != nil {
		n++
	}
	if o.Stop != nil {
		n++
	}
	return n
}

// ExitCode maps the outcome to a process exit status. Usage errors exit
// cleanly because nothing was started.
func (o *Outcome) ExitCode() int {
	switch o.Kind {
	case KindLaunch:
		return ExitLaunchFailed
	case KindCommand:
		return ExitCommandFailed
	default:
		return ExitOK
	}
}
