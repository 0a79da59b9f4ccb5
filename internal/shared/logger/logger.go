package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions liga a saída em arquivo com rotação (lumberjack)
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
}

func New(serviceName string, env string) (*zap.Logger, error) {
	return NewWithFile(serviceName, env, FileOptions{})
}

// NewWithFile cria o logger do serviço; com Path preenchido os logs também
// vão para um arquivo rotacionado, em JSON.
func NewWithFile(serviceName string, env string, file FileOptions) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	// sempre garantir que serviço e env entrem como campos padrão
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	base := []zap.Field{
		zap.String("service", serviceName),
		zap.String("env", env),
	}

	l, err := cfg.Build(zap.Fields(base...))
	if err != nil {
		return nil, err
	}
	if file.Path == "" {
		return l, nil
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename: file.Path,
		MaxSize:  file.MaxSizeMB,
		MaxAge:   file.MaxAgeDays,
		Compress: true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotating, cfg.Level).With(base)

	return l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}
