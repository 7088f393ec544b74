package logging

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp layout used by the non-zap appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. Any zapcore.Core satisfies it.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// NewStdoutAppender returns an appender writing console-encoded entries to stdout.
func NewStdoutAppender() Appender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender returns an appender writing console-encoded entries to w.
func NewWriterAppender(w io.Writer) Appender {
	encoder := zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig)
	return zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel)
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
