package logger

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"

	"github.com/ncobase/runpod/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// bearerPattern matches credentials embedded in free text, e.g. a dumped header
var bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)

const maxDepth = 10

// Desensitizer masks sensitive data in log fields
type Desensitizer struct {
	config   *config.Desensitization
	patterns []*regexp.Regexp
	mask     string
}

// NewDesensitizer creates a new desensitizer instance
func NewDesensitizer(cfg *config.Desensitization) *Desensitizer {
	d := &Desensitizer{
		config: cfg,
		mask:   strings.Repeat(cfg.MaskChar, cfg.FixedMaskLength),
	}

	for _, pattern := range cfg.CustomPatterns {
		if regex, err := regexp.Compile(pattern); err == nil {
			d.patterns = append(d.patterns, regex)
		}
	}

	return d
}

// DesensitizeFields processes log fields and masks sensitive data
func (d *Desensitizer) DesensitizeFields(fields logrus.Fields) logrus.Fields {
	if !d.config.Enabled {
		return fields
	}

	result := make(logrus.Fields, len(fields))
	for key, value := range fields {
		result[key] = d.desensitizeValue(key, value, 0)
	}
	return result
}

// DesensitizeString masks credentials in a free-form message
func (d *Desensitizer) DesensitizeString(s string) string {
	if !d.config.Enabled {
		return s
	}
	return d.desensitizeString(s)
}

func (d *Desensitizer) desensitizeValue(key string, value any, depth int) any {
	if value == nil || depth > maxDepth {
		return value
	}

	if d.isSensitiveField(key) {
		return d.maskValue(value)
	}

	switch v := value.(type) {
	case string:
		return d.desensitizeString(v)
	case error:
		return d.desensitizeString(v.Error())
	case json.RawMessage:
		return d.processViaJSON(v, depth)
	case []byte:
		return value
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			out[k] = d.desensitizeValue(k, iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = d.desensitizeValue("", rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Struct:
		b, err := json.Marshal(value)
		if err != nil {
			return value
		}
		return d.processViaJSON(b, depth)
	default:
		return value
	}
}

// processViaJSON decodes JSON into generic values and walks them
func (d *Desensitizer) processViaJSON(raw []byte, depth int) any {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return d.desensitizeString(string(raw))
	}
	return d.desensitizeValue("", decoded, depth+1)
}

// isSensitiveField checks if field name contains sensitive keywords
func (d *Desensitizer) isSensitiveField(fieldName string) bool {
	if fieldName == "" {
		return false
	}

	lowerName := strings.ToLower(fieldName)
	for _, field := range d.config.SensitiveFields {
		lowerField := strings.ToLower(field)
		if d.config.ExactFieldMatch {
			if lowerName == lowerField {
				return true
			}
		} else if strings.Contains(lowerName, lowerField) {
			return true
		}
	}
	return false
}

func (d *Desensitizer) desensitizeString(s string) string {
	if s == "" {
		return s
	}
	if d.config.MaskBearer {
		s = bearerPattern.ReplaceAllString(s, "Bearer "+d.mask)
	}
	for _, pattern := range d.patterns {
		s = pattern.ReplaceAllString(s, d.mask)
	}
	return s
}

func (d *Desensitizer) maskValue(value any) any {
	if s, ok := value.(string); ok && s == "" {
		return s
	}
	return d.mask
}
