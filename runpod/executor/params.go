package executor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Parameter names read per work item.
const (
	ParamOperation      = "operation"
	ParamModelID        = "modelId"
	ParamInputJSON      = "inputJson"
	ParamJobID          = "jobId"
	ParamWait           = "wait"
	ParamPollMs         = "pollMs"
	ParamTimeoutSeconds = "timeoutSeconds"
	ParamDownload       = "download"
)

// Params yields typed inputs by name and work item index. Missing or
// unconvertible values return def.
type Params interface {
	Len() int
	String(name string, index int, def string) string
	Number(name string, index int, def float64) float64
	Bool(name string, index int, def bool) bool
}

// Credentials yields the provider API key.
type Credentials interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed API key.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) { return string(k), nil }

// CredentialsFunc adapts a function to Credentials.
type CredentialsFunc func(ctx context.Context) (string, error)

func (f CredentialsFunc) APIKey(ctx context.Context) (string, error) { return f(ctx) }

// MapParams serves parameters from decoded JSON objects, one per item.
// inputJson may be given as a string or as an inline object.
type MapParams []map[string]any

func (m MapParams) Len() int { return len(m) }

func (m MapParams) value(name string, index int) (any, bool) {
	if index < 0 || index >= len(m) || m[index] == nil {
		return nil, false
	}
	v, ok := m[index][name]
	return v, ok && v != nil
}

func (m MapParams) String(name string, index int, def string) string {
	v, ok := m.value(name, index)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case map[string]any, []any:
		// inline JSON value
		b, err := json.Marshal(t)
		if err != nil {
			return def
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

func (m MapParams) Number(name string, index int, def float64) float64 {
	v, ok := m.value(name, index)
	if !ok {
		return def
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func (m MapParams) Bool(name string, index int, def bool) bool {
	v, ok := m.value(name, index)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}
