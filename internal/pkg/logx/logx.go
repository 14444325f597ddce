/*
Package logx wraps zerolog for the GYMbro client.

The client writes its logs to stderr: stdout belongs to the interactive console. In
development the output is human-readable at debug level, otherwise JSON at info level.
Package-level helpers take a message plus alternating key/value fields.
*/
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger configures the process-wide logger on stderr.
func InitGlobalLogger(isDevelopment bool) {
	initLogger(os.Stderr, isDevelopment)
}

func initLogger(out io.Writer, isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(out).With().Timestamp().Logger()

	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    false,
			TimeFormat: time.RFC3339,
		})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

// Logger exposes the process-wide logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a logger whose lines carry component=name, e.g. "chat" or "session".
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// checkFields drops a field list that is not made of key/value pairs and reports the bad call.
func checkFields(level string, fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msgf("logx.%s received odd number of fields: %v", level, fields)
		return nil
	}
	return fields
}

// emit writes one line at the level of ev. The caller recorded is the one that called
// the package-level helper.
func emit(ev *zerolog.Event, level string, err error, msg string, fields []any) {
	ev.Err(err).
		Fields(checkFields(level, fields)).
		CallerSkipFrame(2).
		Msg(msg)
}

// Debug logs chatty detail: frames, refreshes, limiter sweeps.
func Debug(msg string, fields ...any) {
	emit(Logger().Debug(), "Debug", nil, msg, fields)
}

// Info logs a session or connection transition.
func Info(msg string, fields ...any) {
	emit(Logger().Info(), "Info", nil, msg, fields)
}

// Warn logs a recoverable failure such as a dropped frame or a failed refresh.
func Warn(msg string, fields ...any) {
	emit(Logger().Warn(), "Warn", nil, msg, fields)
}

// Error logs msg with err attached.
func Error(err error, msg string, fields ...any) {
	emit(Logger().Error(), "Error", err, msg, fields)
}

// Fatal logs msg with err attached and exits the process.
func Fatal(err error, msg string, fields ...any) {
	emit(Logger().Fatal(), "Fatal", err, msg, fields)
}
