package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ncobase/runpod/ecode"
)

// Status is the provider-reported job state. Values beyond the named ones
// are possible and are treated as still running.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether polling should stop at s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobRequest is one submission: the model to run and its opaque input payload.
type JobRequest struct {
	ModelID string
	Input   json.RawMessage
}

// Validate checks the model id and that Input is a JSON object.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.ModelID) == "" {
		return &ProtocolError{Reason: ecode.FieldIsRequired("model id")}
	}
	trimmed := bytes.TrimSpace(r.Input)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return &ProtocolError{Reason: "input must be a JSON object"}
	}
	return nil
}

func (r JobRequest) body() ([]byte, error) {
	return json.Marshal(struct {
		Input json.RawMessage `json:"input"`
	}{Input: r.Input})
}

// JobResponse is a provider reply for run, runsync and status calls.
// Fields keeps every top-level field of the reply as received.
type JobResponse struct {
	ID            string          `json:"id"`
	Status        Status          `json:"status"`
	Output        json.RawMessage `json:"output,omitempty"`
	DelayTime     *float64        `json:"delayTime,omitempty"`
	ExecutionTime *float64        `json:"executionTime,omitempty"`
	WorkerID      string          `json:"workerId,omitempty"`

	Fields map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw object in Fields.
func (r *JobResponse) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("expected a JSON object, got null")
	}

	type plain JobResponse
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = JobResponse(p)
	r.Fields = fields
	return nil
}

// MarshalJSON writes the raw fields back, so unknown provider fields survive.
func (r JobResponse) MarshalJSON() ([]byte, error) {
	if r.Fields != nil {
		return json.Marshal(r.Fields)
	}
	type plain JobResponse
	return json.Marshal(plain(r))
}

// HasOutput reports whether Output holds a value other than JSON null.
func (r *JobResponse) HasOutput() bool {
	out := bytes.TrimSpace(r.Output)
	return len(out) > 0 && !bytes.Equal(out, []byte("null"))
}

// Check rejects a COMPLETED reply without output. Other states pass through.
func (r *JobResponse) Check() error {
	if r.Status == StatusCompleted && !r.HasOutput() {
		return &ProtocolError{Reason: "job " + r.ID + " completed without output"}
	}
	return nil
}
