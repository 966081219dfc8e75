package logger

import "github.com/sirupsen/logrus"

// desensitizeHook rewrites entries before any formatter sees them
type desensitizeHook struct {
	d *Desensitizer
}

func newDesensitizeHook(d *Desensitizer) logrus.Hook {
	return &desensitizeHook{d: d}
}

func (h *desensitizeHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *desensitizeHook) Fire(entry *logrus.Entry) error {
	entry.Data = h.d.DesensitizeFields(entry.Data)
	entry.Message = h.d.DesensitizeString(entry.Message)
	return nil
}
