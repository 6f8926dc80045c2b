package log

import (
	"fmt"
	"os"
	"time"

	"github.com/hookrelay/hookrelay/config/modules"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	timeLayout    = "2006/01/02 15:04:05.000"
	colorDarkGray = 90
)

func colorize(s string, color int, enabled bool) string {
	if !enabled || os.Getenv("NO_COLOR") != "" {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

// NewZapLogger builds the process logger and installs it as the zap global.
func NewZapLogger(cfg *modules.LogConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(string(cfg.Level))
	if err != nil {
		return nil, err
	}

	encodingMap := map[modules.LogFormat]string{
		modules.LogFormatText: "console",
		modules.LogFormatJson: "json",
	}
	encoderMap := map[modules.LogFormat]zapcore.EncoderConfig{
		modules.LogFormatText: zap.NewDevelopmentEncoderConfig(),
		modules.LogFormatJson: zap.NewProductionEncoderConfig(),
	}
	encoding, ok := encodingMap[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("invalid format: %s", cfg.Format)
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderMap[cfg.Format],
	}
	zapConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(timeLayout))
	}
	if cfg.Format == modules.LogFormatText {
		zapConfig.EncoderConfig.EncodeName = func(loggerName string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("%-10s", "["+loggerName+"]"))
		}
		if cfg.Colored {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		zapConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(colorize(t.Format(timeLayout), colorDarkGray, cfg.Colored))
		}
	}

	if cfg.File == "" {
		zapConfig.OutputPaths = []string{"/dev/stdout"}
	} else {
		zapConfig.OutputPaths = []string{cfg.File}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)

	return logger.Sugar(), nil
}
