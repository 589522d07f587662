package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender sends log lines to a test's Log method so they only show up for failing or verbose tests.
type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an appender that logs through tb. Timestamps are in the local timezone.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{
		tb:      tb,
		encoder: zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true}),
	}
}

// Write logs one tab separated line: time, level, logger, caller, message and the fields as a JSON object.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	var line strings.Builder
	line.WriteString(entry.Time.Format(DefaultTimeFormatStr))
	for _, part := range []string{strings.ToUpper(entry.Level.String()), entry.LoggerName} {
		line.WriteByte('\t')
		line.WriteString(part)
	}
	if entry.Caller.Defined {
		line.WriteByte('\t')
		line.WriteString(callerToString(&entry.Caller))
	}
	line.WriteByte('\t')
	line.WriteString(entry.Message)

	var err error
	if len(fields) > 0 {
		// An empty entry makes the encoder emit only the fields, in order.
		buf, encErr := tapp.encoder.Clone().EncodeEntry(zapcore.Entry{}, fields)
		if encErr == nil {
			line.WriteByte('\t')
			line.Write(buf.Bytes())
			buf.Free()
		}
		err = encErr
	}
	tapp.tb.Log(line.String())
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}
