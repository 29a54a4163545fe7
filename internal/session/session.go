// Package session sequences a single netsh capture: start, wait, stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/capture"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/logger"
)

// Invoker runs one external command and reports its outcome
type Invoker interface {
	Invoke(ctx context.Context, cmd capture.Command, label string) *invoker.Result
}

// Sleeper blocks for the capture window
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// StopLabel is the label of the stop step
const StopLabel = "capture stop"

// StartLabel describes the start step including its parameters
func StartLabel(req capture.Request) string {
	return fmt.Sprintf("capture start. Duration : %d. Maxsize : %s", req.Seconds(), req.MaxSizeMB)
}

// Controller owns the Idle -> Starting -> Capturing -> Stopping -> Done lifecycle
type Controller struct {
	invoker Invoker
	sleeper Sleeper
	log     *logger.Logger
	program string
}

// NewController creates a Controller. A nil sleeper means time.Sleep.
func NewController(inv Invoker, sleeper Sleeper, log *logger.Logger, program string) *Controller {
	if sleeper == nil {
		sleeper = SleeperFunc(time.Sleep)
	}
	return &Controller{invoker: inv, sleeper: sleeper, log: log, program: program}
}

// Run parses args and drives one capture session. It never exits the
// process; the returned Outcome tells the caller how the run ended.
func (c *Controller) Run(ctx context.Context, args []string) *Outcome {
	out := &Outcome{State: Idle}

	req, err := capture.ParseArgs(args)
	if err != nil {
		c.log.Error("[session] %v", err)
		c.log.Error("%s", capture.Usage(c.program))
		return out.fail(KindUsage, err)
	}
	out.Request = req
	return c.Execute(ctx, req, out)
}

// Execute drives a session for an already validated request
func (c *Controller) Execute(ctx context.Context, req capture.Request, out *Outcome) *Outcome {
	if out == nil {
		out = &Outcome{State: Idle}
	}
	out.Request = req
	out.StartedAt = time.Now()
	defer func() { out.FinishedAt = time.Now() }()

	c.transition(out, Starting)
	start := capture.StartCommand(req)
	c.log.Debug("[session] netsh command: %s", start)
	out.Start = c.invoker.Invoke(ctx, start, StartLabel(req))
	if err := invoker.Classify(c.log, out.Start); err != nil {
		return out.fail(kindOf(err), err)
	}

	c.transition(out, Capturing)
	c.log.Debug("[session] capturing for %v", req.Duration)
	c.sleeper.Sleep(req.Duration)

	c.transition(out, Stopping)
	stop := capture.StopCommand()
	c.log.Debug("[session] netsh command: %s", stop)
	out.Stop = c.invoker.Invoke(ctx, stop, StopLabel)
	if err := invoker.Classify(c.log, out.Stop); err != nil {
		return out.fail(kindOf(err), err)
	}

	c.transition(out, Done)
	return out
}

func (c *Controller) transition(out *Outcome, next State) {
	c.log.Debug("[session] %s -> %s", out.State, next)
	out.State = next
}

func kindOf(err error) Kind {
	var launchErr *invoker.LaunchError
	if errors.As(err, &launchErr) {
		return KindLaunch
	}
	return KindCommand
}
