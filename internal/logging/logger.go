// Package logging writes severity-levelled diagnostics to the error stream,
// either as human-readable lines or as structured JSON entries.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andywolf/groupcomments/internal/security"
	"github.com/google/uuid"
)

// Severity levels for log entries
type Severity string

const (
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Format selects how entries are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Fields carries structured key/value data attached to an entry.
type Fields map[string]interface{}

// LogEntry is a single structured log record
type LogEntry struct {
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Fields    Fields    `json:"fields,omitempty"`
}

// Logger is safe for concurrent use. The zero value is not usable; call New.
type Logger struct {
	writer    io.Writer
	format    Format
	runID     string
	verbose   bool
	sanitizer *security.LogSanitizer
	now       func() time.Time
	mu        sync.Mutex
}

// Option configures a Logger
type Option func(*Logger)

// WithWriter sets the destination for log output
func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.writer = w
	}
}

// WithFormat sets the output format. Unknown formats fall back to text.
func WithFormat(f Format) Option {
	return func(l *Logger) {
		l.format = f
	}
}

// WithVerbose enables DEBUG entries.
func WithVerbose(verbose bool) Option {
	return func(l *Logger) {
		l.verbose = verbose
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(l *Logger) {
		l.runID = id
	}
}

// WithSanitizer sets the sanitizer applied to messages and string fields.
func WithSanitizer(s *security.LogSanitizer) Option {
	return func(l *Logger) {
		l.sanitizer = s
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// New creates a Logger writing text to stderr with a fresh run ID.
func New(opts ...Option) *Logger {
	l := &Logger{
		writer:    os.Stderr,
		format:    FormatText,
		runID:     uuid.NewString(),
		sanitizer: security.NewLogSanitizer(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(WithWriter(io.Discard))
}

// RunID returns the identifier stamped on every entry.
func (l *Logger) RunID() string {
	return l.runID
}

// Log writes a structured log entry
func (l *Logger) Log(severity Severity, message string, fields Fields) {
	if severity == SeverityDebug && !l.verbose {
		return
	}

	entry := LogEntry{
		Severity:  severity,
		Message:   l.sanitizer.Sanitize(message),
		Timestamp: l.now().UTC(),
		RunID:     l.runID,
		Fields:    l.sanitizeFields(fields),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == FormatJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.writer, `{"severity":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
			return
		}
		fmt.Fprintf(l.writer, "%s\n", data)
		return
	}
	fmt.Fprintln(l.writer, formatText(entry))
}

// Debug logs at DEBUG severity; dropped unless verbose
func (l *Logger) Debug(message string, fields Fields) {
	l.Log(SeverityDebug, message, fields)
}

// Info logs at INFO severity
func (l *Logger) Info(message string, fields Fields) {
	l.Log(SeverityInfo, message, fields)
}

// Warning logs at WARNING severity
func (l *Logger) Warning(message string, fields Fields) {
	l.Log(SeverityWarning, message, fields)
}

// Error logs at ERROR severity
func (l *Logger) Error(message string, fields Fields) {
	l.Log(SeverityError, message, fields)
}

// Debugf logs a formatted message at DEBUG severity
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Log(SeverityDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted message at INFO severity
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Log(SeverityInfo, fmt.Sprintf(format, args...), nil)
}

// Warningf logs a formatted message at WARNING severity
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Log(SeverityWarning, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted message at ERROR severity
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Log(SeverityError, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) sanitizeFields(fields Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = l.sanitizer.Sanitize(val)
		case error:
			out[k] = l.sanitizer.SanitizeError(val)
		case http.Header:
			out[k] = l.sanitizer.SanitizeHeader(val)
		case map[string]string:
			m := make(map[string]string, len(val))
			for mk, mv := range val {
				m[mk] = l.sanitizer.Sanitize(mv)
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out
}

// formatText renders "TIMESTAMP SEVERITY message key=value ..." with keys
// sorted so output is stable.
func formatText(entry LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(string(entry.Severity))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(entry.Fields[k]))
	}
	return b.String()
}

func formatValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+val[k])
		}
		s = "{" + strings.Join(parts, "; ") + "}"
	default:
		s = fmt.Sprint(val)
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
