package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 是全局日志实例，未初始化时为 no-op，方便测试直接使用。
var Logger = zap.NewNop()

// Init builds a production zap logger at the given level and installs it globally.
// Unknown levels fall back to info.
func Init(logLevel string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(level)

	built, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Logger = built
	return built, nil
}

// Named returns a child of the global logger, or a no-op logger when l is nil.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = Logger
	}
	return l.Named(name)
}
