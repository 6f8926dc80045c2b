package accesslog

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const timeFormat = "2006/01/02 15:04:05.000"

func init() {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.TimestampFieldName = "ts"
}

type AccessLogger interface {
	Log(entry *Entry)
}

type Options struct {
	File   string
	Format string
	// Writer overrides File.
	Writer io.Writer
}

func NewAccessLogger(name string, opts Options) (AccessLogger, error) {
	writer := opts.Writer
	if writer == nil {
		if opts.File == "" {
			return nil, errors.New("accesslog file is required")
		}
		writer = os.Stdout
		if opts.File != "/dev/stdout" {
			file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
			if err != nil {
				return nil, err
			}
			writer = file
		}
	}

	switch opts.Format {
	case "text":
		return newTextLogger(name, writer), nil
	case "json":
		return newJsonLogger(name, writer), nil
	default:
		return nil, errors.New("invalid format: " + opts.Format)
	}
}

type jsonLogger struct {
	logger zerolog.Logger
}

func newJsonLogger(name string, writer io.Writer) *jsonLogger {
	return &jsonLogger{
		logger: zerolog.New(writer).With().Str("name", name).Logger(),
	}
}

func (l *jsonLogger) Log(entry *Entry) {
	l.logger.Log().Timestamp().EmbedObject(entry).Send()
}

type textLogger struct {
	logger zerolog.Logger
}

func newTextLogger(name string, writer io.Writer) *textLogger {
	output := zerolog.ConsoleWriter{
		Out:        writer,
		NoColor:    true,
		TimeFormat: timeFormat,
	}
	output.PartsOrder = []string{zerolog.TimestampFieldName, "name", zerolog.MessageFieldName}
	output.FieldsExclude = []string{"name"}
	output.FormatFieldName = func(i interface{}) string { return "" }
	return &textLogger{
		logger: zerolog.New(output).With().Str("name", "["+name+"]").Timestamp().Logger(),
	}
}

func (l *textLogger) Log(entry *Entry) {
	l.logger.Log().Msg(entry.String())
}
