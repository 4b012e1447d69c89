package env

import (
	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogOptions struct {
	// Verbosity 0 logs at info, 1 at debug and 2 or more also switches to the
	// development encoder with caller information.
	Verbosity int

	// Console writes human readable lines instead of JSON.
	Console bool

	// File tees the logs into a rotated file. Optional.
	File string
}

func MakeLogger(options LogOptions) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logConfig.Encoding = "json"
	logConfig.DisableCaller = true

	switch {
	case options.Verbosity >= 2:
		logConfig = zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)

	case options.Verbosity == 1:
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if options.Console {
		logConfig.Encoding = "console"
		logConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		logConfig.OutputPaths = []string{"stderr"}
	}

	var opts []zap.Option

	if options.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		}

		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			logConfig.Level,
		)

		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	return logConfig.Build(opts...)
}
