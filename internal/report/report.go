// Package report is the diagnostic side channel of gitlab-trace.
//
// Everything that is not trace output, a job listing or a printed URL goes
// through a Reporter so that stdout stays byte-exact for pipes and redirects.
package report

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reporter receives human-readable diagnostics.
type Reporter interface {
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warnf(format string, a ...interface{})
}

// Logger is a Reporter backed by a zap console core that prints bare messages.
type Logger struct {
	z     *zap.SugaredLogger
	level zap.AtomicLevel
}

var _ Reporter = (*Logger)(nil)

// New returns a Logger writing to w at the given level.
// Every entry is written straight through to w; nothing is buffered.
func New(w io.Writer, lvl zapcore.Level) *Logger {
	level := zap.NewAtomicLevelAt(lvl)
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return &Logger{
		z:     zap.New(core).Sugar(),
		level: level,
	}
}

// Nop returns a Reporter that discards everything.
func Nop() *Logger {
	return &Logger{
		z:     zap.NewNop().Sugar(),
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.z.Debugf(format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.z.Infof(format, a...)
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.z.Warnf(format, a...)
}

// Errorf reports a fatal condition. It is not part of Reporter: only the
// process boundary decides that an error is fatal.
func (l *Logger) Errorf(format string, a ...interface{}) {
	l.z.Errorf(format, a...)
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(lvl zapcore.Level) {
	l.level.SetLevel(lvl)
}

// Close flushes the underlying core.
func (l *Logger) Close() error {
	return l.z.Sync()
}
