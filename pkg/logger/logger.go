package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log      *zap.Logger
	onceInit sync.Once
)

// ParseLevel maps LOG_LEVEL values onto zap levels; unknown values mean info.
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func Init(level zapcore.Level, meta ...zap.Field) error {
	var buildErr error
	onceInit.Do(func() {
		instance, err := configure(level).Build(zap.AddCaller())
		if err != nil {
			buildErr = errors.Wrap(err, "build zap logger")
			return
		}
		Log = instance.With(meta...)
	})
	if buildErr != nil {
		return buildErr
	}

	if Log == nil {
		return errors.New("logger not initialized")
	}

	return nil
}

func configure(level zapcore.Level) zap.Config {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeDuration = zapcore.SecondsDurationEncoder
	encoder.EncodeName = zapcore.FullNameEncoder
	encoder.CallerKey = "caller"
	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: level > zapcore.DebugLevel,
		Encoding:          "console",
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
