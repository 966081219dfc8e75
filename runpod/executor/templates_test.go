package executor

import (
	"encoding/json"
	"testing"

	"github.com/ncobase/runpod/runpod/catalog"
)

func decodeTemplate(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("template is not an object: %v", err)
	}
	return m
}

func TestDefaultInputByRule(t *testing.T) {
	tests := []struct {
		model string
		op    catalog.Operation
		key   string
	}{
		{"qwen3-32b-awq", catalog.OpGenerateText, "messages"},
		{"black-forest-labs-flux-1-dev", catalog.OpGenerateImage, "width"},
		{"nano-banana-edit", catalog.OpGenerateImage, "images"},
		{"wan-2-5", catalog.OpGenerateVideo, "duration"},
		{"whisper-v3-large", catalog.OpGenerateAudio, "language"},
		// the model's rule wins over the operation
		{"wan-2-5", catalog.OpGenerateText, "flow_shift"},
	}
	for _, tt := range tests {
		m := decodeTemplate(t, DefaultInput(tt.model, tt.op))
		if _, ok := m[tt.key]; !ok {
			t.Errorf("DefaultInput(%s, %s) = %v, missing %q", tt.model, tt.op, m, tt.key)
		}
	}
}

func TestDefaultInputUnmatchedModel(t *testing.T) {
	m := decodeTemplate(t, DefaultInput("acme-model", catalog.OpGenerateVideo))
	if m["size"] != "1280*720" {
		t.Errorf("video fallback = %v", m)
	}
	m = decodeTemplate(t, DefaultInput("acme-model", catalog.OpGenerateText))
	if m["prompt"] != "Hello, world!" || m["max_tokens"] != float64(100) {
		t.Errorf("generic = %v", m)
	}
}

func TestTextTemplateSampling(t *testing.T) {
	m := decodeTemplate(t, DefaultInput("granite-4-0-h-small", catalog.OpGenerateText))
	sp, ok := m["sampling_params"].(map[string]any)
	if !ok {
		t.Fatalf("sampling_params = %v", m["sampling_params"])
	}
	if sp["max_tokens"] != float64(512) || sp["seed"] != float64(-1) {
		t.Errorf("sampling_params = %v", sp)
	}
}

func TestResolveInput(t *testing.T) {
	got, err := resolveInput(" { \"a\" : 1 } ", "m", catalog.OpGenerateText)
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("resolveInput = %s, %v", got, err)
	}
	for _, bad := range []string{"[1]", "null", "{", "42"} {
		if _, err := resolveInput(bad, "m", catalog.OpGenerateText); err == nil {
			t.Errorf("resolveInput(%q) accepted", bad)
		}
	}
}
