// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	sugar  = zap.NewNop().Sugar()
	logfFn func(format string, v ...interface{})
)

// Logf is the package-level diagnostic logger. It writes through the zap
// logger installed by Init but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf = func(format string, v ...interface{}) {
	mu.RLock()
	f, s := logfFn, sugar
	mu.RUnlock()
	if f != nil {
		f(format, v...)
		return
	}
	s.Infof(format, v...)
}

// Init builds the zap logger used by Logf and Warnw. Development mode writes
// human-readable console output at debug level.
func Init(dev bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		l, err = cfg.Build()
	}
	if err != nil {
		return err
	}
	SetZap(l)
	return nil
}

// SetZap installs l as the backing logger. A nil logger installs a no-op.
func SetZap(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

// SetLogger replaces the printf-style sink. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	mu.Lock()
	logfFn = f
	mu.Unlock()
}

// Warnw logs a structured warning. Signal-quality findings go through here so
// they can be filtered by key.
func Warnw(msg string, keysAndValues ...interface{}) {
	mu.RLock()
	f, s := logfFn, sugar
	mu.RUnlock()
	if f != nil {
		f("warn: %s %v", msg, keysAndValues)
		return
	}
	s.Warnw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	_ = s.Sync()
}
