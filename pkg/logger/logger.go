package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry. Entries below the configured
// level are dropped.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < TraceLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds the logger configuration.
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Logger writes leveled entries to a single destination.
type Logger struct {
	mu  sync.Mutex
	cfg Config
	out io.Writer
}

var defaultLogger *Logger

// Initialize replaces the process-wide logger. Each call resets the
// destination to stderr, undoing any earlier SetOutput.
func Initialize(cfg Config) error {
	defaultLogger = &Logger{cfg: cfg, out: os.Stderr}
	return nil
}

// SetOutput redirects the process-wide logger. Machine-readable output
// modes use this to keep stdout clean.
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.mu.Lock()
	defaultLogger.out = w
	defaultLogger.mu.Unlock()
}

// Field attaches structured context to an entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field
func Err(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

// entry is the wire form of one log line.
type entry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, message string, fields ...Field) {
	if l == nil || level < l.cfg.Level {
		return
	}

	e := entry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.cfg.Component,
	}
	if len(fields) > 0 {
		e.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			e.Fields[f.Key] = f.Value
		}
	}

	var line string
	if l.cfg.JSON {
		b, err := json.Marshal(e)
		if err != nil {
			line = fmt.Sprintf(`{"level":%q,"message":%q}`, e.Level, e.Message)
		} else {
			line = string(b)
		}
	} else {
		line = l.render(e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

var levelColors = map[string]string{
	"TRACE": "37",
	"DEBUG": "36",
	"INFO":  "32",
	"WARN":  "33",
	"ERROR": "31",
}

func (l *Logger) render(e entry) string {
	var b strings.Builder

	b.WriteString(e.Time.Format("2006-01-02 15:04:05"))

	name := e.Level
	if l.cfg.UseColor {
		if code, ok := levelColors[name]; ok {
			name = "\033[" + code + "m" + name + "\033[0m"
		}
	}
	fmt.Fprintf(&b, " [%s]", name)

	if e.Component != "" {
		fmt.Fprintf(&b, " %s:", e.Component)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	if len(e.Fields) > 0 {
		// Sort keys so the same entry always renders the same way.
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Fields[k])
		}
		b.WriteString("}")
	}

	return b.String()
}

// Package-level helpers writing through the process-wide logger.

func Trace(message string, fields ...Field) {
	defaultLogger.log(TraceLevel, message, fields...)
}

func Debug(message string, fields ...Field) {
	defaultLogger.log(DebugLevel, message, fields...)
}

// Info falls back to bare stderr when nothing initialized the logger yet,
// so early startup messages are never lost.
func Info(message string, fields ...Field) {
	if defaultLogger == nil {
		fmt.Fprintf(os.Stderr, "[INFO] pyneat: %s\n", message)
		return
	}
	defaultLogger.log(InfoLevel, message, fields...)
}

func Warn(message string, fields ...Field) {
	defaultLogger.log(WarnLevel, message, fields...)
}

func Error(message string, fields ...Field) {
	defaultLogger.log(ErrorLevel, message, fields...)
}
