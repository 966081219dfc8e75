package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ncobase/runpod/ctxutil"
	"github.com/ncobase/runpod/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Key constants
const (
	VersionKey = "version"
	ErrorKey   = "error"
)

// Logger wraps logrus with context aware helpers
type Logger struct {
	*logrus.Logger
	mu      sync.Mutex
	version string
	logFile *os.File
	logPath string
	stop    chan struct{}
}

var (
	stdLogger *Logger
	once      sync.Once
)

// StdLogger returns the process wide logger
func StdLogger() *Logger {
	once.Do(func() {
		stdLogger = NewLogger(os.Stderr)
	})
	return stdLogger
}

// NewLogger creates a standalone logger writing JSON to w
func NewLogger(w io.Writer) *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.AddHook(newDesensitizeHook(NewDesensitizer(config.Default().Desensitization)))
	return l
}

// New configures the standard logger and returns a cleanup function
func New(c *config.Config) (func(), error) {
	return StdLogger().Init(c)
}

// SetVersion sets the version attached to every entry
func (l *Logger) SetVersion(v string) {
	l.version = v
}

// SetVersion sets the version on the standard logger
func SetVersion(v string) {
	StdLogger().SetVersion(v)
}

// Init applies the configuration
func (l *Logger) Init(c *config.Config) (func(), error) {
	if c == nil {
		c = config.Default()
	}

	l.SetLevel(logrus.Level(c.Level))

	switch c.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	switch c.Output {
	case "stdout":
		l.SetOutput(os.Stdout)
	case "file":
		if c.OutputFile == "" {
			return nil, fmt.Errorf("logger output is file but output_file is empty")
		}
		l.logPath = c.OutputFile
		if err := l.setupLogFile(); err != nil {
			return nil, err
		}
		l.stop = make(chan struct{})
		go l.periodicLogRotation(l.stop)
	default:
		l.SetOutput(os.Stderr)
	}

	if c.Desensitization != nil {
		l.ReplaceHooks(make(logrus.LevelHooks))
		l.AddHook(newDesensitizeHook(NewDesensitizer(c.Desensitization)))
	}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.stop != nil {
			close(l.stop)
			l.stop = nil
		}
		if l.logFile != nil {
			_ = l.logFile.Close()
			l.logFile = nil
		}
	}, nil
}

// setupLogFile sets up the log file
func (l *Logger) setupLogFile() error {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return l.rotateLog()
}

// rotateLog opens the file for the current day
func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logFilePath := fmt.Sprintf("%s.%s.log", strings.TrimSuffix(l.logPath, ".log"), time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	old := l.logFile
	l.logFile = f
	l.SetOutput(f)
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (l *Logger) periodicLogRotation(stop <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := l.rotateLog(); err != nil {
				l.Logger.Errorf("Error rotating log: %v", err)
			}
		}
	}
}

// entryFromContext creates a new log entry with fields from context
func (l *Logger) entryFromContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}

	if ctx != nil {
		if traceID := ctxutil.GetTraceID(ctx); traceID != "" {
			fields[ctxutil.TraceIDKey] = traceID
		}
		if id := ctxutil.GetInvocationID(ctx); id != "" {
			fields["invocation_id"] = id
		}
		if idx, ok := ctxutil.GetItemIndex(ctx); ok {
			fields["item"] = idx
		}
	}

	if l.version != "" {
		fields[VersionKey] = l.version
	}

	return l.WithFields(fields)
}

// log writes msg with trailing key/value pairs as fields
func (l *Logger) log(ctx context.Context, level logrus.Level, msg string, kv ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}
	l.entryFromContext(ctx).WithFields(pairs(kv)).Log(level, msg)
}

// pairs turns alternating keys and values into fields; a dangling value is kept under "extra"
func pairs(kv []any) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			fields["extra"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		val := kv[i+1]
		if err, ok := val.(error); ok && err != nil {
			val = err.Error()
		}
		fields[key] = val
	}
	return fields
}

// Debug logs a debug message with key/value pairs
func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, logrus.DebugLevel, msg, kv...)
}

// Info logs an info message with key/value pairs
func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, logrus.InfoLevel, msg, kv...)
}

// Warn logs a warn message with key/value pairs
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, logrus.WarnLevel, msg, kv...)
}

// Error logs an error message with key/value pairs
func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, logrus.ErrorLevel, msg, kv...)
}
