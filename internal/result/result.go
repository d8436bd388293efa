// Package result defines the outcome of a single job execution: the verdict,
// process exit data, and the captured IO transcript. Results are immutable
// once built; the session layer owns exactly one (the most recent) per job.
package result

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Outcome is the closed set of verdicts a job execution can produce.
type Outcome string

const (
	OutcomeNone           Outcome = ""
	OutcomePass           Outcome = "pass"
	OutcomeFail           Outcome = "fail"
	OutcomeCrash          Outcome = "crash"
	OutcomeSkip           Outcome = "skip"
	OutcomeUndecided      Outcome = "undecided"
	OutcomeNotImplemented Outcome = "not-implemented"
	OutcomeNotSupported   Outcome = "not-supported"
)

// ValidOutcome reports whether o is a member of the outcome enum.
// The empty outcome is valid: it models a result that carries a transcript
// but no verdict yet.
func ValidOutcome(o Outcome) bool {
	switch o {
	case OutcomeNone, OutcomePass, OutcomeFail, OutcomeCrash, OutcomeSkip,
		OutcomeUndecided, OutcomeNotImplemented, OutcomeNotSupported:
		return true
	default:
		return false
	}
}

// Stream identifies which output stream an IO log record was captured from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// IOLogRecord is one captured chunk of job output: the delay since the
// previous record, the originating stream, and the raw bytes.
type IOLogRecord struct {
	Delay  float64
	Stream Stream
	Data   []byte
}

// Result is the outcome of one job execution. Exactly one of IOLog or
// IOLogFilename is set: either the transcript is embedded in memory, or it
// lives in an external file referenced by pathname.
type Result struct {
	Outcome           Outcome
	Comments          string
	ReturnCode        *int
	ExecutionDuration *float64
	IOLog             []IOLogRecord
	IOLogFilename     string
}

// DiskBacked reports whether the transcript lives in an external file
// rather than embedded records.
func (r *Result) DiskBacked() bool {
	return r.IOLogFilename != ""
}

// StdoutText returns the concatenated stdout portion of the transcript.
// For disk-backed results the referenced file is read as a plain text
// transcript; a read failure is returned to the caller, who decides whether
// the reference is fatal.
func (r *Result) StdoutText() (string, error) {
	if r.DiskBacked() {
		data, err := os.ReadFile(r.IOLogFilename)
		if err != nil {
			return "", fmt.Errorf("reading io log %s: %w", r.IOLogFilename, err)
		}
		return string(data), nil
	}
	var sb strings.Builder
	for _, rec := range r.IOLog {
		if rec.Stream == Stdout {
			sb.Write(rec.Data)
		}
	}
	return sb.String(), nil
}

// Duration returns ExecutionDuration as a time.Duration, or zero when unset.
func (r *Result) Duration() time.Duration {
	if r.ExecutionDuration == nil {
		return 0
	}
	return time.Duration(*r.ExecutionDuration * float64(time.Second))
}

func (r *Result) String() string {
	if r.Outcome == OutcomeNone {
		return "undetermined"
	}
	return string(r.Outcome)
}
