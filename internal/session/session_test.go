package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/capture"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/logger"
)

type call struct {
	command string
	label   string
}

// mockInvoker records every command and replays canned results in order
type mockInvoker struct {
	calls   []call
	results []*invoker.Result
}

func (m *mockInvoker) Invoke(ctx context.Context, cmd capture.Command, label string) *invoker.Result {
	m.calls = append(m.calls, call{command: cmd.String(), label: label})
	var res *invoker.Result
	if len(m.results) > 0 {
		res = m.results[0]
		m.results = m.results[1:]
	} else {
		res = &invoker.Result{Status: "exit status 0"}
	}
	res.Label = label
	res.Command = cmd.String()
	return res
}

func (m *mockInvoker) commands() []string {
	var out []string
	for _, c := range m.calls {
		out = append(out, c.command)
	}
	return out
}

type mockSleeper struct {
	slept []time.Duration
}

func (m *mockSleeper) Sleep(d time.Duration) {
	m.slept = append(m.slept, d)
}

func ok() *invoker.Result {
	return &invoker.Result{ExitCode: 0, Status: "exit status 0"}
}

func failed(code int) *invoker.Result {
	return &invoker.Result{
		ExitCode: code,
		Status:   "exit status 1",
		Stderr:   []byte("The requested operation requires elevation."),
	}
}

func launchFailed() *invoker.Result {
	return &invoker.Result{
		ExitCode: -1,
		Status:   "not started",
		Err:      &invoker.LaunchError{Argv: []string{"powershell"}, Err: errors.New("executable file not found in %PATH%")},
	}
}

func newController(t *testing.T, inv Invoker, level logger.LogLevel) (*Controller, *mockSleeper, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logger.NewLogger(logger.Config{Level: level, Output: &buf})
	require.NoError(t, err)
	sleeper := &mockSleeper{}
	return NewController(inv, sleeper, log, "netsh-capture"), sleeper, &buf
}

func TestRun_FullSession(t *testing.T) {
	inv := &mockInvoker{results: []*invoker.Result{ok(), ok()}}
	c, sleeper, buf := newController(t, inv, logger.Info)

	out := c.Run(context.Background(), []string{"duration=5", `output=C:\trace.etl`, "maxsize=512"})

	assert.Equal(t, Done, out.State)
	assert.Equal(t, KindNone, out.Kind)
	assert.NoError(t, out.Err)
	assert.Equal(t, ExitOK, out.ExitCode())
	assert.Equal(t, 2, out.Invocations())
	assert.Equal(t, []string{
		`netsh trace start capture=yes tracefile=C:\trace.etl maxSize=512`,
		"netsh trace stop",
	}, inv.commands())
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.slept)
	assert.Equal(t, capture.Request{Duration: 5 * time.Second, OutputPath: `C:\trace.etl`, MaxSizeMB: "512"}, out.Request)

	assert.Equal(t, "capture start. Duration : 5. Maxsize : 512", inv.calls[0].label)
	assert.Equal(t, StopLabel, inv.calls[1].label)

	logs := buf.String()
	assert.Equal(t, 2, strings.Count(logs, "INFO: "))
	assert.NotContains(t, logs, "ERROR: ")
	assert.False(t, out.FinishedAt.Before(out.StartedAt))
}

func TestRun_OrderAcrossPermutations(t *testing.T) {
	args := [][]string{
		{"maxsize=10", "duration=2", "output=a.etl"},
		{"output=a.etl", "maxsize=10", "duration=2"},
	}
	for _, a := range args {
		inv := &mockInvoker{}
		c, sleeper, _ := newController(t, inv, logger.Info)
		out := c.Run(context.Background(), a)
		assert.Equal(t, Done, out.State)
		assert.Equal(t, []string{"netsh trace start capture=yes tracefile=a.etl maxSize=10", "netsh trace stop"}, inv.commands())
		assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.slept)
	}
}

func TestRun_MissingArgument(t *testing.T) {
	for _, args := range [][]string{
		{"output=a", "maxsize=1"},
		{"duration=1", "maxsize=1"},
		{"duration=1", "output=a"},
		nil,
	} {
		inv := &mockInvoker{}
		c, sleeper, buf := newController(t, inv, logger.Info)

		out := c.Run(context.Background(), args)

		assert.Equal(t, Failed, out.State)
		assert.Equal(t, Idle, out.FailedIn)
		assert.Equal(t, KindUsage, out.Kind)
		assert.ErrorIs(t, out.Err, capture.ErrMissingArgument)
		assert.Equal(t, ExitOK, out.ExitCode())
		assert.Empty(t, inv.calls)
		assert.Empty(t, sleeper.slept)
		assert.Contains(t, buf.String(), "Usage: netsh-capture duration=<duration in seconds> output=<path> maxsize=<maximum size in MB>")
	}
}

func TestRun_InvalidDuration(t *testing.T) {
	for _, d := range []string{"-5", "five", "2.5"} {
		inv := &mockInvoker{}
		c, sleeper, buf := newController(t, inv, logger.Info)

		out := c.Run(context.Background(), []string{"duration=" + d, "output=a", "maxsize=1"})

		assert.Equal(t, KindUsage, out.Kind)
		assert.ErrorIs(t, out.Err, capture.ErrInvalidDuration)
		assert.False(t, errors.Is(out.Err, capture.ErrMissingArgument))
		assert.Empty(t, inv.calls)
		assert.Empty(t, sleeper.slept)
		assert.Contains(t, buf.String(), "Usage:")
	}
}

func TestRun_StartFails(t *testing.T) {
	inv := &mockInvoker{results: []*invoker.Result{failed(1)}}
	c, sleeper, buf := newController(t, inv, logger.Info)

	out := c.Run(context.Background(), []string{"duration=5", "output=a.etl", "maxsize=512"})

	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Starting, out.FailedIn)
	assert.Equal(t, KindCommand, out.Kind)
	assert.Equal(t, ExitCommandFailed, out.ExitCode())
	assert.Equal(t, 1, out.Invocations())
	assert.Len(t, inv.calls, 1)
	assert.Nil(t, out.Stop)
	assert.Empty(t, sleeper.slept)

	var cmdErr *invoker.CommandError
	require.ErrorAs(t, out.Err, &cmdErr)
	assert.Equal(t, "capture start. Duration : 5. Maxsize : 512", cmdErr.Label)
	assert.Contains(t, buf.String(), "requires elevation")
}

func TestRun_StartLaunchFails(t *testing.T) {
	inv := &mockInvoker{results: []*invoker.Result{launchFailed()}}
	c, sleeper, _ := newController(t, inv, logger.Info)

	out := c.Run(context.Background(), []string{"duration=5", "output=a.etl", "maxsize=512"})

	assert.Equal(t, KindLaunch, out.Kind)
	assert.Equal(t, ExitLaunchFailed, out.ExitCode())
	assert.Len(t, inv.calls, 1)
	assert.Empty(t, sleeper.slept)

	var launchErr *invoker.LaunchError
	assert.ErrorAs(t, out.Err, &launchErr)
}

func TestRun_StopFails(t *testing.T) {
	inv := &mockInvoker{results: []*invoker.Result{ok(), failed(1)}}
	c, sleeper, _ := newController(t, inv, logger.Info)

	out := c.Run(context.Background(), []string{"duration=3", "output=a.etl", "maxsize=512"})

	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Stopping, out.FailedIn)
	assert.Equal(t, KindCommand, out.Kind)
	assert.Equal(t, ExitCommandFailed, out.ExitCode())
	assert.Equal(t, []string{"netsh trace start capture=yes tracefile=a.etl maxSize=512", "netsh trace stop"}, inv.commands())
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.slept)
	assert.True(t, out.Start.Succeeded())
	assert.False(t, out.Stop.Succeeded())
}

func TestRun_ZeroDuration(t *testing.T) {
	inv := &mockInvoker{}
	c, sleeper, _ := newController(t, inv, logger.Info)

	out := c.Run(context.Background(), []string{"duration=0", "output=a.etl", "maxsize=1"})
	assert.Equal(t, Done, out.State)
	assert.Equal(t, []time.Duration{0}, sleeper.slept)
	assert.Len(t, inv.calls, 2)
}

func TestRun_DebugLogsCommandAndTransitions(t *testing.T) {
	inv := &mockInvoker{}
	c, _, buf := newController(t, inv, logger.Debug)

	c.Run(context.Background(), []string{"duration=1", "output=a.etl", "maxsize=1"})

	logs := buf.String()
	assert.Contains(t, logs, "netsh command: netsh trace start capture=yes tracefile=a.etl maxSize=1")
	assert.Contains(t, logs, "idle -> starting")
	assert.Contains(t, logs, "starting -> capturing")
	assert.Contains(t, logs, "capturing -> stopping")
	assert.Contains(t, logs, "stopping -> done")
}

func TestNewController_DefaultSleeper(t *testing.T) {
	c := NewController(&mockInvoker{}, nil, logger.Discard(), "x")
	start := time.Now()
	out := c.Run(context.Background(), []string{"duration=0", "output=a", "maxsize=1"})
	assert.Equal(t, Done, out.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStateAndKindNames(t *testing.T) {
	assert.Equal(t, "capturing", Capturing.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "launch", KindLaunch.String())
	assert.Equal(t, "unknown", State(99).String())
}
