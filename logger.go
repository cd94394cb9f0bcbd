package customfit

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogLevel is the SDK's leveled-logging scheme.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota - 2
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

// Logger is the interface the SDK logs through. Hosts embedding the SDK in
// a platform with its own logging formatter can supply their own
// implementation; DefaultLogger backs it with logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLogger returns a Logger backed by a dedicated logrus instance,
// formatted as text with the component name attached as a field.
func DefaultLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return &logrusLogger{entry: l.WithField("component", "customfit")}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// leveledLogger wraps a Logger with level gating and an onError hook; the
// hook is any func(error) rather than a fixed struct field, so it can be
// wired from Config or from a detached client independently.
type leveledLogger struct {
	minLevel LogLevel
	debug    bool
	onError  func(error)
	Logger
}

func newLeveledLogger(logger Logger, level LogLevel, debug bool, onError func(error)) *leveledLogger {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &leveledLogger{minLevel: level, debug: debug, onError: onError, Logger: logger}
}

func (l *leveledLogger) enabled(level LogLevel) bool {
	return level >= l.minLevel
}

func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	if l.debug && l.enabled(LogLevelDebug) {
		l.Logger.Debugf(format, args...)
	}
}

func (l *leveledLogger) Infof(format string, args ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.Logger.Infof(format, args...)
	}
}

func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	if l.enabled(LogLevelWarn) {
		l.Logger.Warnf(format, args...)
	}
}

func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	if l.onError != nil {
		go func() {
			defer func() { _ = recover() }()
			l.onError(NewError(CategoryInternal, sprintf(format, args...), nil))
		}()
	}
	if l.enabled(LogLevelError) {
		l.Logger.Errorf(format, args...)
	}
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
