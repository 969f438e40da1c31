// Package logger 进程级 zap 日志, 支持通过 context 携带字段
package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level       string `yaml:"level" json:"level"`
	Format      string `yaml:"format" json:"format"`
	Output      string `yaml:"output" json:"output"` // stdout, stderr 或文件路径
	ServiceName string `yaml:"service_name" json:"service_name"`
}

type fieldsKey struct{}

var (
	current     atomic.Pointer[zap.Logger]
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 按配置构建全局日志, 无法识别的级别按 info 处理
func Init(cfg *Config) error {
	atomicLevel.SetLevel(parseLevel(cfg.Level, zapcore.InfoLevel))

	sink, err := openSink(cfg.Output)
	if err != nil {
		return err
	}
	core := zapcore.NewCore(newEncoder(cfg.Format), sink, atomicLevel)

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.ServiceName != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.ServiceName)))
	}
	Replace(zap.New(core, opts...))
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder

	if strings.EqualFold(format, "console") {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", output, err)
	}
	return zapcore.AddSync(f), nil
}

func parseLevel(text string, fallback zapcore.Level) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return fallback
	}
	return lvl
}

// Replace 替换全局日志, nil 表示丢弃所有输出
func Replace(l *zap.Logger) {
	current.Store(l)
}

// SetLevel 运行时调整级别, 非法取值被忽略
func SetLevel(level string) {
	atomicLevel.SetLevel(parseLevel(level, atomicLevel.Level()))
}

// L 返回全局日志
func L() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// NewContext 返回携带附加字段的 context, 字段会与已有字段合并
func NewContext(ctx context.Context, fields ...zap.Field) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(append(merged, prev...), fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// WithContext 返回带有 ctx 字段的日志
func WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if fields, ok := ctx.Value(fieldsKey{}).([]zap.Field); ok && len(fields) > 0 {
		return L().With(fields...)
	}
	return L()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// Sync 刷新缓冲
func Sync() error {
	return L().Sync()
}
