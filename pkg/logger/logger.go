// Package logger provides component-tagged structured logging for markovrelay.
//
// Every call names the component it comes from ("dispatch", "discord",
// "moderation", ...) and may carry a field map. Output is produced by zerolog:
// a human readable console writer when attached to a terminal, JSON lines
// otherwise.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
	FATAL: "fatal",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel maps a config string to a LogLevel. Unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal", "critical":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	current atomic.Pointer[zerolog.Logger]
	level   atomic.Int32
)

func init() {
	level.Store(int32(INFO))
	Configure(os.Stderr, false)
}

// Configure replaces the output sink. When json is false and w is a terminal,
// a console writer is used.
func Configure(w io.Writer, json bool) {
	out := w
	if !json {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		}
	}
	l := zerolog.New(out).With().Timestamp().Logger().Level(GetLevel().zerolog())
	current.Store(&l)
}

func SetLevel(l LogLevel) {
	level.Store(int32(l))
	lg := current.Load().Level(l.zerolog())
	current.Store(&lg)
}

func GetLevel() LogLevel {
	return LogLevel(level.Load())
}

// Zerolog exposes the underlying logger for libraries that want one.
func Zerolog() *zerolog.Logger {
	return current.Load()
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	if l < GetLevel() {
		return
	}
	lg := current.Load()
	var evt *zerolog.Event
	switch l {
	case DEBUG:
		evt = lg.Debug()
	case WARN:
		evt = lg.Warn()
	case ERROR:
		evt = lg.Error()
	case FATAL:
		// WithLevel never exits the process.
		evt = lg.WithLevel(zerolog.FatalLevel)
	default:
		evt = lg.Info()
	}
	if component != "" {
		evt = evt.Str("component", component)
	}
	if len(fields) > 0 {
		evt = evt.Fields(fields)
	}
	evt.Msg(message)
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }
func Info(message string)  { logMessage(INFO, "", message, nil) }
func Warn(message string)  { logMessage(WARN, "", message, nil) }
func Error(message string) { logMessage(ERROR, "", message, nil) }

func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }
func InfoC(component, message string)  { logMessage(INFO, component, message, nil) }
func WarnC(component, message string)  { logMessage(WARN, component, message, nil) }
func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }

func DebugF(message string, fields map[string]any) { logMessage(DEBUG, "", message, fields) }
func InfoF(message string, fields map[string]any)  { logMessage(INFO, "", message, fields) }
func WarnF(message string, fields map[string]any)  { logMessage(WARN, "", message, fields) }
func ErrorF(message string, fields map[string]any) { logMessage(ERROR, "", message, fields) }

func DebugCF(component, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}

func FatalCF(component, message string, fields map[string]any) {
	logMessage(FATAL, component, message, fields)
}
