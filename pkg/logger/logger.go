package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Log  *zap.Logger
	once sync.Once
)

// InitLogger builds the process-wide logger: coloured console output plus a
// rotated JSON file under logDir. Only the first call has any effect.
func InitLogger(logDir string, debug bool) {
	once.Do(func() {
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			panic(err)
		}

		consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		consoleEncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stdout),
			levelFor(debug),
		)

		fileEncoderConfig := zap.NewProductionEncoderConfig()
		fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(logDir, "fxjournal.json"),
				MaxSize:    10, // MB
				MaxBackups: 30,
				MaxAge:     30, // days
				Compress:   true,
			}),
			zapcore.InfoLevel,
		)

		Log = zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		zap.ReplaceGlobals(Log)
	})
}

func levelFor(debug bool) zapcore.LevelEnabler {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// NewModuleLogger returns a child logger tagged with module=name.
func NewModuleLogger(name string) *zap.Logger {
	if Log == nil {
		InitLogger("logs", true)
	}
	return Log.With(zap.String("module", name))
}

// OrNop lets components accept an optional logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes buffered file output; call before exit.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
