package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log messages for assertions in tests. Derived loggers
// from WithField/WithFields share the parent's capture buffer.
type TestLogger struct {
	rec     *recorder
	fields  map[string]interface{}
	zerolog *zerolog.Logger
}

type recorder struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage is a captured log message.
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewTestLogger creates a capturing logger.
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{rec: &recorder{}, zerolog: &nop}
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &TestLogger{rec: l.rec, fields: l.merge(fields), zerolog: l.zerolog}
}

func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *TestLogger) GetZerolog() *zerolog.Logger { return l.zerolog }

func (l *TestLogger) merge(fields map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = append(l.rec.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  l.merge(fields),
	})
}

// Messages returns a copy of all captured messages.
func (l *TestLogger) Messages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	out := make([]LogMessage, len(l.rec.messages))
	copy(out, l.rec.messages)
	return out
}

// MessagesByLevel returns all captured messages of one level.
func (l *TestLogger) MessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, m := range l.Messages() {
		if m.Level == level {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// HasMessage reports whether a message containing text was logged.
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// String renders the captured messages for test failure output.
func (l *TestLogger) String() string {
	var sb strings.Builder
	for _, m := range l.Messages() {
		fmt.Fprintf(&sb, "[%s] %s %v\n", m.Level, m.Message, m.Fields)
	}
	return sb.String()
}
