package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a Logger implementation for tests that captures every log
// message instead of writing it anywhere.
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
	fields   map[string]interface{}
	zerolog  *zerolog.Logger
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	nopLogger := zerolog.Nop()
	return &TestLogger{
		fields:  make(map[string]interface{}),
		zerolog: &nopLogger,
	}
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

// WithField returns a logger carrying an additional field
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger carrying additional fields. The returned logger
// shares the parent's message buffer so tests see everything in one place.
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &testLoggerView{parent: l, fields: merged}
}

// WithError adds an error field
func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// GetZerolog returns a no-op zerolog instance
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return l.zerolog
}

// Messages returns a copy of everything logged so far.
func (l *TestLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasMessage reports whether a message with the given level and text was
// logged.
func (l *TestLogger) HasMessage(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.Level == level && m.Message == msg {
			return true
		}
	}
	return false
}

// Clear discards captured messages.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: merged})
}

// testLoggerView is a TestLogger with bound fields, writing into its parent's
// buffer.
type testLoggerView struct {
	parent *TestLogger
	fields map[string]interface{}
}

func (v *testLoggerView) Debug(msg string) { v.logWith("DEBUG", msg, nil) }
func (v *testLoggerView) Info(msg string)  { v.logWith("INFO", msg, nil) }
func (v *testLoggerView) Warn(msg string)  { v.logWith("WARN", msg, nil) }
func (v *testLoggerView) Error(msg string) { v.logWith("ERROR", msg, nil) }
func (v *testLoggerView) Fatal(msg string) { v.logWith("FATAL", msg, nil) }

func (v *testLoggerView) DebugWithFields(msg string, fields map[string]interface{}) {
	v.logWith("DEBUG", msg, fields)
}

func (v *testLoggerView) InfoWithFields(msg string, fields map[string]interface{}) {
	v.logWith("INFO", msg, fields)
}

func (v *testLoggerView) WarnWithFields(msg string, fields map[string]interface{}) {
	v.logWith("WARN", msg, fields)
}

func (v *testLoggerView) ErrorWithFields(msg string, fields map[string]interface{}) {
	v.logWith("ERROR", msg, fields)
}

func (v *testLoggerView) WithField(key string, value interface{}) Logger {
	return v.WithFields(map[string]interface{}{key: value})
}

func (v *testLoggerView) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(v.fields)+len(fields))
	for k, val := range v.fields {
		merged[k] = val
	}
	for k, val := range fields {
		merged[k] = val
	}
	return &testLoggerView{parent: v.parent, fields: merged}
}

func (v *testLoggerView) WithError(err error) Logger {
	if err == nil {
		return v
	}
	return v.WithField("error", err.Error())
}

func (v *testLoggerView) GetZerolog() *zerolog.Logger {
	return v.parent.GetZerolog()
}

func (v *testLoggerView) logWith(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(v.fields)+len(fields))
	for k, val := range v.fields {
		merged[k] = val
	}
	for k, val := range fields {
		merged[k] = val
	}
	v.parent.mu.Lock()
	defer v.parent.mu.Unlock()
	v.parent.messages = append(v.parent.messages, LogMessage{Level: level, Message: msg, Fields: merged})
}
