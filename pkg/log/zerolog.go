package log

import (
	"context"
	"io"
	"os"
	"sync"

	cockroach "github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	withFields(l.logger.Warn(), fields).Msg(msg)
}

// Error implements Logger.Error. An error passed as the first field is
// recorded with its stack trace.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	event := l.logger.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			event = event.Err(err)
			if st := extractStacktrace(err); st != "" {
				event = event.Str(StacktraceKey, st)
			}
			fields = fields[1:]
		}
	}
	withFields(event, fields).Msg(msg)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.logger.GetLevel() <= toZerologLevel(level)
}

func withFields(event *zerolog.Event, fields []any) *zerolog.Event {
	if event == nil || len(fields) == 0 {
		return event
	}
	return event.Fields(fields)
}

// extractStacktrace はcockroachdb/errorsが保持するスタックトレースを取り出す
func extractStacktrace(err error) string {
	details := cockroach.GetSafeDetails(err).SafeDetails
	if len(details) == 0 {
		return ""
	}
	return details[0]
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider creates component loggers that share one writer and level.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider returns a provider writing JSON records to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter returns a provider writing JSON records to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	base := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{logger: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{logger: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider. Loggers already handed out keep their level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// warnFunc は警告をzerologに流す関数を返す
func (p *ZerologProvider) warnFunc() func(error) {
	return func(w error) {
		p.mu.RLock()
		event := p.base.Warn()
		p.mu.RUnlock()
		var obj zerolog.LogObjectMarshaler
		if errors.As(w, &obj) {
			event = event.EmbedObject(obj)
		}
		event.Msg(w.Error())
	}
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetupLogger installs a stderr zerolog provider at the given level as the
// global provider and routes library warnings through it.
func SetupLogger(level string) error {
	return SetupLoggerWithWriter(os.Stderr, level)
}

// SetupLoggerWithWriter is SetupLogger with an explicit destination.
func SetupLoggerWithWriter(w io.Writer, level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	p := NewZerologProviderWithWriter(w, l)
	SetProvider(p)
	errors.SetZerologWarnFunc(p.warnFunc())
	return nil
}

// SetProvider replaces the global provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the global provider.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}
