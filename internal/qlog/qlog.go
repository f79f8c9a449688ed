// Package qlog is qtrace's structured logger, a thin wrapper over
// *zap.Logger with field helpers for this domain's recurring values:
// guest addresses, syscall numbers, and breakpoint hits.
package qlog

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.Logger tagged with the run's correlation ID.
type Logger struct {
	*zap.Logger
	runID uuid.UUID
}

// Init builds the base zap.Config for dev (human console) or prod (JSON)
// output, mirroring the split the teacher's logger uses.
func Init(dev bool) (*zap.Logger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build(zap.AddCallerSkip(1))
}

// New wraps an already-built zap.Logger for a given run.
func New(base *zap.Logger, runID uuid.UUID) *Logger {
	return &Logger{
		Logger: base.With(zap.String("run_id", runID.String())),
		runID:  runID,
	}
}

// NewNop returns a Logger that discards everything, for tests and
// library callers that don't want log output.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), runID: uuid.Nil}
}

// Frame logs receipt of a trace frame.
func (l *Logger) Frame(reason string, numAddrs uint64) {
	l.Debug("trace frame", zap.String("reason", reason), zap.Uint64("num_addrs", numAddrs))
}

// Syscall logs a decoded syscall start or end.
func (l *Logger) Syscall(phase string, nr int64, description string) {
	l.Info("syscall", zap.String("phase", phase), zap.Int64("nr", nr), zap.String("desc", description))
}

// Breakpoint logs a breakpoint hit at a guest address.
func (l *Logger) Breakpoint(addr uint64) {
	l.Info("breakpoint", Addr(addr))
}

// Addr renders a guest address as a zap field in the teacher's 0x-hex
// convention.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", hexString(addr))
}

// Hex renders a value in the same 0x-hex form as Addr but under the key
// "hex", for values that aren't code addresses (e.g. a raw memory offset).
func Hex(v uint64) zap.Field {
	return zap.String("hex", hexString(v))
}

// Fn names the function or symbol a log line concerns.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}

func hexString(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
