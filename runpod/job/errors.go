package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/ncobase/runpod/ecode"
)

// Sentinels matched through errors.Is by the typed errors below.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrProtocol      = errors.New("protocol error")
	ErrTransport     = errors.New("provider request failed")
	ErrJobFailed     = errors.New("job failed")
	ErrTimeout       = errors.New("job timed out")
	ErrCancelled     = errors.New("job wait cancelled")
)

// ConfigurationError is raised before any request when settings are unusable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Code() int { return ecode.ConfigurationErr }

// ErrMissingAPIKey is the configuration error for an empty credential.
func ErrMissingAPIKey() error {
	return &ConfigurationError{Reason: "Runpod API key is required"}
}

// ProtocolError reports a reply or input that breaks the job contract.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func (e *ProtocolError) Code() int { return ecode.ProtocolErr }

// TransportError wraps any failure of the underlying request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "provider request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Code() int { return ecode.TransportErr }

// JobFailedError is returned when the provider reports FAILED for a job.
type JobFailedError struct {
	JobID string
	// Response is the FAILED status reply, it may carry an error field
	Response *JobResponse
}

func (e *JobFailedError) Error() string { return "Job failed: " + e.JobID }

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

func (e *JobFailedError) Code() int { return ecode.JobFailed }

// TimeoutError is returned when the polling budget, or the caller's
// deadline, elapses before a terminal state.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
	// Err is the context error when the caller's deadline ended the wait
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Job timed out after %d seconds: %s", int64(e.Elapsed.Seconds()), e.JobID)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Code() int { return ecode.JobTimeout }

// CancelledError is returned when the caller cancels while a job is polled.
// The job itself keeps running at the provider.
type CancelledError struct {
	JobID string
	Err   error
}

func (e *CancelledError) Error() string { return "Job wait cancelled: " + e.JobID }

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Code() int { return ecode.JobCancelled }
