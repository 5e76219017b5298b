// Package oplog configures the process wide zerolog logger. Diagnostics go
// through it; user facing task output is printed directly by the CLI layer.
package oplog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out}
	writer.TimeFormat = "15:04:05"
	writer.FormatFieldValue = func(value interface{}) string {
		str, ok := value.(string)
		if ok && strings.Contains(str, "\\n") && strings.Contains(str, "\\t") {
			// unquote values that contain line breaks and tabs because
			// they're most likely stack traces
			unquoted, err := strconv.Unquote(str)
			if err == nil {
				return unquoted
			}
		}

		return fmt.Sprintf("%s", value)
	}

	return writer
}

// Setup replaces the global logger. JSON mode emits machine readable lines,
// otherwise a console writer renders them to stderr. A log file replaces
// stderr when given; error stacks are rendered through eris in both modes.
func Setup(level zerolog.Level, jsonOut bool, file string) error {
	if jsonOut {
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return eris.ToJSON(err, true)
		}
	} else {
		log.Logger = log.Output(consoleWriter(os.Stderr))
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return eris.ToString(err, true)
		}
	}

	zerolog.SetGlobalLevel(level)

	if file != "" {
		logFile, err := os.Create(file)
		if err != nil {
			return eris.Wrapf(err, "failed to open log file %s", file)
		}

		var out io.Writer = logFile
		if !jsonOut {
			writer := consoleWriter(logFile)
			writer.NoColor = true
			out = writer
		}

		log.Logger = log.Output(out)
	}

	log.Logger = log.Logger.With().Timestamp().Stack().Logger()
	return nil
}
