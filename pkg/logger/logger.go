package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelDebug LogLevel = "DEBUG"
	LevelError LogLevel = "ERROR"
)

type LogFields map[string]interface{}

type Logger interface {
	WithFields(fields LogFields) Logger

	Info(action, message string)
	Debug(action, message string)
	Error(action string, err error)
}

// jsonLogger writes one JSON object per line. Safe for concurrent use.
type jsonLogger struct {
	mu         *sync.Mutex
	out        io.Writer
	service    string
	hostname   string
	baseFields LogFields
}

type logEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Service   string   `json:"service"`
	Action    string   `json:"action"`
	Message   string   `json:"message"`
	Hostname  string   `json:"hostname"`
	RequestID string   `json:"request_id,omitempty"`
	RideID    string   `json:"ride_id,omitempty"`

	Error *errorEntry `json:"error,omitempty"`

	Fields LogFields `json:"fields,omitempty"`
}

type errorEntry struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// NewLogger creates a structured JSON logger for a service.
func NewLogger(serviceName string) Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &jsonLogger{
		mu:         &sync.Mutex{},
		out:        os.Stdout,
		service:    serviceName,
		hostname:   host,
		baseFields: make(LogFields),
	}
}

// WithFields returns a logger that carries the given fields on every entry,
// merged over the fields already inherited.
func (l *jsonLogger) WithFields(fields LogFields) Logger {
	merged := make(LogFields, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &jsonLogger{
		mu:         l.mu,
		out:        l.out,
		service:    l.service,
		hostname:   l.hostname,
		baseFields: merged,
	}
}

func (l *jsonLogger) Info(action, message string) {
	l.log(LevelInfo, action, message, nil)
}

func (l *jsonLogger) Debug(action, message string) {
	l.log(LevelDebug, action, message, nil)
}

// Error logs an error together with a trimmed stack trace.
func (l *jsonLogger) Error(action string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	errData := &errorEntry{
		Msg:   msg,
		Stack: trimStack(string(buf[:n])),
	}
	l.log(LevelError, action, msg, errData)
}

func (l *jsonLogger) log(level LogLevel, action, message string, errData *errorEntry) {
	entry := &logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Action:    action,
		Message:   message,
		Hostname:  l.hostname,
		Error:     errData,
	}

	fields := make(LogFields)
	for k, v := range l.baseFields {
		switch k {
		case "ride_id":
			if id, ok := v.(string); ok {
				entry.RideID = id
				continue
			}
		case "request_id":
			if id, ok := v.(string); ok {
				entry.RequestID = id
				continue
			}
		}
		fields[k] = v
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}

	line, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: marshal failed: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(line))
}

// trimStack drops runtime and testing frames so the trace starts at the
// caller that mattered.
func trimStack(stack string) string {
	lines := strings.Split(stack, "\n")
	var kept []string

	if len(lines) > 0 {
		kept = append(kept, lines[0])
	}

	for i := 1; i+1 < len(lines); i += 2 {
		funcName := lines[i]
		filePath := strings.TrimSpace(lines[i+1])

		if strings.HasPrefix(funcName, "runtime.") ||
			strings.HasPrefix(funcName, "testing.") ||
			strings.Contains(funcName, "logger.") {
			continue
		}

		kept = append(kept, funcName, "    "+filePath)
	}

	return strings.Join(kept, "\n")
}
