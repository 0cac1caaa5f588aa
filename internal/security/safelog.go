package security

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SafeLogger wraps zerolog.Logger to automatically mask sensitive data.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger creates a new safe logger that masks sensitive data.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

// Logger returns the wrapped logger for code that needs a plain zerolog.Logger.
func (sl *SafeLogger) Logger() zerolog.Logger {
	return sl.logger
}

// Debug logs a debug message with sensitive data masked.
func (sl *SafeLogger) Debug() *SafeEvent {
	return &SafeEvent{event: sl.logger.Debug()}
}

// Info logs an info message with sensitive data masked.
func (sl *SafeLogger) Info() *SafeEvent {
	return &SafeEvent{event: sl.logger.Info()}
}

// Warn logs a warning message with sensitive data masked.
func (sl *SafeLogger) Warn() *SafeEvent {
	return &SafeEvent{event: sl.logger.Warn()}
}

// Error logs an error message with sensitive data masked.
func (sl *SafeLogger) Error() *SafeEvent {
	return &SafeEvent{event: sl.logger.Error()}
}

// With creates a child logger with additional context.
func (sl *SafeLogger) With() *SafeContext {
	return &SafeContext{ctx: sl.logger.With()}
}

// SafeEvent wraps zerolog.Event to mask sensitive data.
type SafeEvent struct {
	event *zerolog.Event
}

// Str adds a string field, masking if sensitive.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if IsSensitiveField(key) {
		se.event = se.event.Str(key, MaskCredential(val))
	} else {
		se.event = se.event.Str(key, MaskSensitive(val))
	}
	return se
}

// Int adds an integer field.
func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

// Time adds a time field.
func (se *SafeEvent) Time(key string, val time.Time) *SafeEvent {
	se.event = se.event.Time(key, val)
	return se
}

// Err adds an error field, masking sensitive data in the error message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Err(fmt.Errorf("%s", MaskSensitive(err.Error())))
	}
	return se
}

// Msg sends the event with a message.
func (se *SafeEvent) Msg(msg string) {
	if ContainsSensitiveData(msg) {
		msg = MaskSensitive(msg)
	}
	se.event.Msg(msg)
}

// SafeContext wraps zerolog.Context to mask sensitive data.
type SafeContext struct {
	ctx zerolog.Context
}

// Str adds a string field to the context, masking if sensitive.
func (sc *SafeContext) Str(key, val string) *SafeContext {
	if IsSensitiveField(key) {
		sc.ctx = sc.ctx.Str(key, MaskCredential(val))
	} else {
		sc.ctx = sc.ctx.Str(key, MaskSensitive(val))
	}
	return sc
}

// Logger returns the logger with the context applied.
func (sc *SafeContext) Logger() *SafeLogger {
	return &SafeLogger{logger: sc.ctx.Logger()}
}
