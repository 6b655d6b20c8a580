package zaplog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSprintfLogger exposes a zap-backed sprintf-style logging surface that
// plugs into logging.LogFuncs
type ZapSprintfLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapSprintfLogger creates a console logger at the given level
// (debug, info, warn, error); an empty or unknown level falls back to info
func NewZapSprintfLogger(level string) (*ZapSprintfLogger, error) {
	zapLevel := zapcore.InfoLevel
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &ZapSprintfLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapSprintfLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *ZapSprintfLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *ZapSprintfLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *ZapSprintfLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered log entries, intended for deferred use at exit
func (l *ZapSprintfLogger) Sync() error {
	return l.sugar.Sync()
}
