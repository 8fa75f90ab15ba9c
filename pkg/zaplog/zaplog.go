// Package zaplog writes beacon signals to a zap logger.
package zaplog

import (
	"context"
	"time"

	"github.com/zoobzio/beacon"
	"github.com/zoobzio/capitan"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type extractor func(e *capitan.Event) (zap.Field, bool)

func str(name string, key interface {
	From(*capitan.Event) (string, bool)
}) extractor {
	return func(e *capitan.Event) (zap.Field, bool) {
		v, ok := key.From(e)
		return zap.String(name, v), ok
	}
}

func integer(name string, key interface {
	From(*capitan.Event) (int, bool)
}) extractor {
	return func(e *capitan.Event) (zap.Field, bool) {
		v, ok := key.From(e)
		return zap.Int(name, v), ok
	}
}

func duration(name string, key interface {
	From(*capitan.Event) (time.Duration, bool)
}) extractor {
	return func(e *capitan.Event) (zap.Field, bool) {
		v, ok := key.From(e)
		return zap.Duration(name, v), ok
	}
}

var extractors = []extractor{
	str("state", beacon.KeyState),
	str("old_state", beacon.KeyOldState),
	str("new_state", beacon.KeyNewState),
	str("peer", beacon.KeyPeer),
	str("code", beacon.KeyCode),
	str("snapshot", beacon.KeySnapshot),
	str("reason", beacon.KeyReason),
	str("module", beacon.KeyModule),
	str("mode", beacon.KeyMode),
	str("updates", beacon.KeyUpdates),
	str("content_type", beacon.KeyContentType),
	str("op", beacon.KeyOp),
	str("error", beacon.KeyError),
	integer("generation", beacon.KeyGeneration),
	integer("bytes", beacon.KeyBytes),
	integer("attempt", beacon.KeyAttempt),
	duration("duration", beacon.KeyDuration),
}

// Attach hooks every beacon signal and logs it to logger at a level that
// matches its severity. Event fields become structured log fields.
func Attach(logger *zap.Logger) {
	capitan.Hook(beacon.CoordinatorStarted, handler(logger, zapcore.InfoLevel, "coordinator started", beacon.CoordinatorStarted.Name()))
	capitan.Hook(beacon.CoordinatorStopped, handler(logger, zapcore.InfoLevel, "coordinator stopped", beacon.CoordinatorStopped.Name()))
	capitan.Hook(beacon.CoordinatorStateChanged, handler(logger, zapcore.InfoLevel, "coordinator state changed", beacon.CoordinatorStateChanged.Name()))
	capitan.Hook(beacon.ExperimentLoaded, handler(logger, zapcore.InfoLevel, "experiment loaded", beacon.ExperimentLoaded.Name()))
	capitan.Hook(beacon.RequestReceived, handler(logger, zapcore.DebugLevel, "request received", beacon.RequestReceived.Name()))
	capitan.Hook(beacon.RequestUnrecognized, handler(logger, zapcore.WarnLevel, "unrecognized request", beacon.RequestUnrecognized.Name()))
	capitan.Hook(beacon.SnapshotBuilt, handler(logger, zapcore.DebugLevel, "snapshot built", beacon.SnapshotBuilt.Name()))
	capitan.Hook(beacon.SnapshotSent, handler(logger, zapcore.DebugLevel, "snapshot sent", beacon.SnapshotSent.Name()))
	capitan.Hook(beacon.SendRetried, handler(logger, zapcore.WarnLevel, "send retried", beacon.SendRetried.Name()))
	capitan.Hook(beacon.SendFailed, handler(logger, zapcore.ErrorLevel, "send failed", beacon.SendFailed.Name()))
	capitan.Hook(beacon.RebuildFailed, handler(logger, zapcore.ErrorLevel, "rebuild failed", beacon.RebuildFailed.Name()))
	capitan.Hook(beacon.UpdateFailed, handler(logger, zapcore.WarnLevel, "update failed", beacon.UpdateFailed.Name()))
	capitan.Hook(beacon.UpdateApplied, handler(logger, zapcore.InfoLevel, "update applied", beacon.UpdateApplied.Name()))
	capitan.Hook(beacon.WorkerStarted, handler(logger, zapcore.DebugLevel, "update worker started", beacon.WorkerStarted.Name()))
	capitan.Hook(beacon.WorkerFinished, handler(logger, zapcore.DebugLevel, "update worker finished", beacon.WorkerFinished.Name()))
}

func handler(logger *zap.Logger, level zapcore.Level, msg, signal string) func(context.Context, *capitan.Event) {
	return func(_ context.Context, e *capitan.Event) {
		ce := logger.Check(level, msg)
		if ce == nil {
			return
		}
		fields := make([]zap.Field, 0, 4)
		fields = append(fields, zap.String("signal", signal))
		for _, extract := range extractors {
			if f, ok := extract(e); ok {
				fields = append(fields, f)
			}
		}
		ce.Write(fields...)
	}
}

// New builds a production logger at the named level.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level.SetLevel(lvl)
	return cfg.Build()
}
