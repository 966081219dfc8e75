package executor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ncobase/runpod/runpod/job"
)

// Record is the per-item output: every provider field plus modelId and,
// when requested, downloadUrl.
type Record map[string]json.RawMessage

// downloadKeys are checked in order; the first present value decides.
var downloadKeys = []string{"image_url", "audio_url", "file_url"}

// BuildOutput merges the provider reply with the model id.
func BuildOutput(resp *job.JobResponse, modelID string, download bool) (Record, error) {
	rec := make(Record, len(resp.Fields)+2)
	if resp.Fields != nil {
		for k, v := range resp.Fields {
			rec[k] = v
		}
	} else {
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
	}

	id, err := json.Marshal(modelID)
	if err != nil {
		return nil, err
	}
	rec["modelId"] = id

	if download {
		if url, ok := downloadURL(resp.Output); ok {
			v, _ := json.Marshal(url)
			rec["downloadUrl"] = v
		}
	}
	return rec, nil
}

// downloadURL takes the first truthy media field of output; only a string
// value yields a URL.
func downloadURL(output json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(output, &fields); err != nil {
		return "", false
	}
	for _, key := range downloadKeys {
		raw, ok := fields[key]
		if !ok || !truthy(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return "", false
}

func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}
