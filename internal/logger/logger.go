// Package logger builds the process-wide zap logger from configuration.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bloodbank/m/internal/config"
)

// New returns a logger writing to stdout. LOG_FORMAT "console" gives
// human-readable lines, anything else JSON. An unknown LOG_LEVEL falls back
// to info and is reported through the logger itself.
func New(cfg config.Config, name string) (*zap.Logger, error) {
	return build(cfg, name, os.Stdout)
}

func build(cfg config.Config, name string, out io.Writer) (*zap.Logger, error) {
	level, levelErr := zapcore.ParseLevel(cfg.LogLevel)
	if levelErr != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if cfg.LogFormat == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))
	log := zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr)))

	fields := []zap.Field{zap.String("service_name", name), zap.String("db_driver", cfg.DatabaseDriver)}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}
	log = log.With(fields...)

	if levelErr != nil {
		log.Warn("unknown log level, using info", zap.String("log_level", cfg.LogLevel))
	}
	return log, nil
}
