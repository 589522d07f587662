package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable lines from log events and write them to the desired
// output sync. E.g: stdout or a file.
type ConsoleAppender struct {
	io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender creates a new appender that logs to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that logs human readable lines to the input writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer, zapcore.NewConsoleEncoder(NewEncoderConfig())}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.Clone().EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// FileAppender writes JSON log lines to a size-rotated file.
type FileAppender struct {
	out     *lumberjack.Logger
	encoder zapcore.Encoder
}

// NewFileAppender creates an appender that writes to filename, rotating it once it grows past
// maxSizeMB megabytes and keeping at most maxBackups old files.
func NewFileAppender(filename string, maxSizeMB, maxBackups int) *FileAppender {
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &FileAppender{
		out: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
		encoder: zapcore.NewJSONEncoder(cfg),
	}
}

// Write appends the entry to the current log file.
func (appender *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.Clone().EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.out.Write(buf.Bytes())
	return err
}

// Sync is a no-op; lumberjack writes are unbuffered.
func (appender *FileAppender) Sync() error {
	return nil
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.out.Close()
}

func callerToString(caller *zapcore.EntryCaller) string {
	// The file returned by `runtime.Caller` is a full path and always contains '/' to separate
	// directories. Including on windows. We only want to keep the `<package>/<file>` part of the
	// path. We use a stateful lambda to count back two '/' runes.
	cnt := 0
	idx := -1
	for i := len(caller.File) - 1; i >= 0; i-- {
		if caller.File[i] == '/' {
			cnt++
			if cnt == 2 {
				idx = i + 1
				break
			}
		}
	}
	if idx < 0 {
		return fmt.Sprintf("%s:%d", caller.File, caller.Line)
	}
	return fmt.Sprintf("%s:%d", caller.File[idx:], caller.Line)
}
