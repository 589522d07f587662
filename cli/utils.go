package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/fiducial-nav/markerpose/logging"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a yellow warning to the error writer.
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	warningColor.Fprintf(w, "Warning: "+format+"\n", a...)
}

func statusText(ok bool, text string) string {
	if ok {
		return successColor.Sprint(text)
	}
	return failureColor.Sprint(text)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	return t
}

// newLogger builds the command logger. Logs go to the app's error writer and, with --log-file, to a rotated
// JSON file. The returned function closes the file.
func newLogger(c *cli.Context, level string) (logging.Logger, func(), error) {
	logger := logging.NewBlankLogger("markertrack")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)
	if level != "" {
		lvl, err := logging.LevelFromString(level)
		if err != nil {
			return nil, nil, err
		}
		logger.SetLevel(lvl)
	}
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	closeLogs := func() {}
	if path := c.Path(generalFlagLogFile); path != "" {
		fileAppender := logging.NewFileAppender(path, 10, 3)
		logger.AddAppender(fileAppender)
		closeLogs = func() {
			if err := fileAppender.Close(); err != nil {
				warningf(c.App.ErrWriter, "cannot close log file: %v", err)
			}
		}
	}
	return logger, closeLogs, nil
}
