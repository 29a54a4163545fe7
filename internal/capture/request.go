package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Launch argument keys
const (
	KeyDuration = "duration"
	KeyOutput   = "output"
	KeyMaxSize  = "maxsize"
)

var (
	// ErrMissingArgument is returned when one of the required keys is absent
	ErrMissingArgument = errors.New("missing required argument")
	// ErrInvalidDuration is returned when duration is not a non-negative integer
	ErrInvalidDuration = errors.New("invalid duration")
)

// UsageError describes launch arguments that cannot form a Request.
// It wraps either ErrMissingArgument or ErrInvalidDuration.
type UsageError struct {
	Err     error
	Missing []string // keys not supplied, in canonical order
	Value   string   // offending duration value, if any
}

func (e *UsageError) Error() string {
	if errors.Is(e.Err, ErrInvalidDuration) {
		return fmt.Sprintf("%v: %q is not a non-negative number of seconds", e.Err, e.Value)
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Missing, ", "))
}

func (e *UsageError) Unwrap() error { return e.Err }

// Request holds the validated parameters of one capture session
type Request struct {
	// Duration is how long the capture runs, in whole seconds
	Duration time.Duration
	// OutputPath is the trace file passed to netsh verbatim
	OutputPath string
	// MaxSizeMB is the maximum trace size passed to netsh verbatim
	MaxSizeMB string
}

// Seconds returns the capture duration as whole seconds
func (r Request) Seconds() uint64 {
	return uint64(r.Duration / time.Second)
}

// Args renders the request back into launch tokens
func (r Request) Args() []string {
	return []string{
		KeyDuration + "=" + strconv.FormatUint(r.Seconds(), 10),
		KeyOutput + "=" + r.OutputPath,
		KeyMaxSize + "=" + r.MaxSizeMB,
	}
}

// Usage returns the usage line shown when the arguments are incomplete
func Usage(program string) string {
	return fmt.Sprintf("Usage: %s %s=<duration in seconds> %s=<path> %s=<maximum size in MB>",
		program, KeyDuration, KeyOutput, KeyMaxSize)
}

// ParseArgs builds a Request from launch tokens (program name excluded).
// Tokens are matched as key=value on the exact key; anything else is ignored.
// When a key repeats the last value wins.
func ParseArgs(args []string) (Request, error) {
	values := make(map[string]string, 3)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		switch key {
		case KeyDuration, KeyOutput, KeyMaxSize:
			values[key] = value
		}
	}

	var missing []string
	for _, key := range []string{KeyDuration, KeyOutput, KeyMaxSize} {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Request{}, &UsageError{Err: ErrMissingArgument, Missing: missing}
	}

	raw := values[KeyDuration]
	seconds, err := strconv.ParseUint(raw, 10, 63)
	if err != nil || seconds > uint64(maxDurationSeconds) {
		return Request{}, &UsageError{Err: ErrInvalidDuration, Value: raw}
	}

	return Request{
		Duration:   time.Duration(seconds) * time.Second,
		OutputPath: values[KeyOutput],
		MaxSizeMB:  values[KeyMaxSize],
	}, nil
}

// maxDurationSeconds is the largest duration representable as time.Duration
const maxDurationSeconds = int64(1<<63-1) / int64(time.Second)
