package report

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/invoker"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/metadata"
	"EnigmaNetz/Enigma-Netsh-Capture/internal/session"
)

// Record summarizes one finished capture session
type Record struct {
	SessionID  string
	Duration   uint64
	OutputPath string
	MaxSizeMB  string
	State      string
	FailedIn   string
	Kind       string
	Error      string
	Start      *Step
	Stop       *Step
	StartedAt  time.Time
	FinishedAt time.Time
	Host       map[string]string
}

// Step is the reported outcome of one netsh invocation
type Step struct {
	Command  string
	ExitCode int
	Status   string
	Elapsed  time.Duration
}

// NewRecord builds the report for a finished session
func NewRecord(sessionID string, out *session.Outcome, host metadata.Host) Record {
	rec := Record{
		SessionID:  sessionID,
		Duration:   out.Request.Seconds(),
		OutputPath: out.Request.OutputPath,
		MaxSizeMB:  out.Request.MaxSizeMB,
		State:      out.State.String(),
		Kind:       out.Kind.String(),
		Start:      newStep(out.Start),
		Stop:       newStep(out.Stop),
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		Host:       host.Map(),
	}
	if out.State == session.Failed {
		rec.FailedIn = out.FailedIn.String()
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return rec
}

func newStep(r *invoker.Result) *Step {
	if r == nil {
		return nil
	}
	return &Step{
		Command:  r.Command,
		ExitCode: r.ExitCode,
		Status:   r.Status,
		Elapsed:  r.EndTime.Sub(r.StartTime),
	}
}

// Struct converts the record into its wire message
func (r Record) Struct() (*structpb.Struct, error) {
	host := make(map[string]interface{}, len(r.Host))
	for k, v := range r.Host {
		host[k] = v
	}
	fields := map[string]interface{}{
		"session_id":  r.SessionID,
		"duration":    r.Duration,
		"output_path": r.OutputPath,
		"max_size_mb": r.MaxSizeMB,
		"state":       r.State,
		"kind":        r.Kind,
		"started_at":  r.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at": r.FinishedAt.UTC().Format(time.RFC3339Nano),
		"host":        host,
	}
	if r.FailedIn != "" {
		fields["failed_in"] = r.FailedIn
	}
	if r.Error != "" {
		fields["error"] = r.Error
	}
	if r.Start != nil {
		fields["start"] = r.Start.fields()
	}
	if r.Stop != nil {
		fields["stop"] = r.Stop.fields()
	}
	return structpb.NewStruct(fields)
}

func (s *Step) fields() map[string]interface{} {
	return map[string]interface{}{
		"command":    s.Command,
		"exit_code":  s.ExitCode,
		"status":     s.Status,
		"elapsed_ms": s.Elapsed.Milliseconds(),
	}
}
