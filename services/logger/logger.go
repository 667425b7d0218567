package logsvc

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/trezcool/masomodb/core"
)

// Logger is a core.Logger writing JSON lines through logrus.
type Logger struct {
	entry *logrus.Entry
}

var _ core.Logger = (*Logger)(nil)

// New builds the application logger. Warnings and errors are forwarded to Rollbar when a token is configured.
func New(conf *core.Config, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	logg := logrus.New()
	logg.SetOutput(out)
	logg.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if conf.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logg.SetLevel(level)

	if conf.RollbarToken != "" {
		logg.AddHook(newRollbarHook(conf))
	}

	return &Logger{entry: logg.WithFields(logrus.Fields{"app": conf.AppName, "env": conf.Env})}
}

// NewNop discards everything; for tests.
func NewNop() *Logger {
	logg := logrus.New()
	logg.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(logg)}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(toFields(args))}
}

// toFields turns key/value pairs into logrus fields. A lone error is stored under "error".
func toFields(args []interface{}) logrus.Fields {
	flds := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case error:
			flds[logrus.ErrorKey] = arg
		case string:
			if i+1 < len(args) {
				flds[arg] = args[i+1]
				i++
			} else {
				flds[fmt.Sprintf("arg%d", i)] = arg
			}
		default:
			flds[fmt.Sprintf("arg%d", i)] = arg
		}
	}
	return flds
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Debug(msg)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Info(msg)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Warn(msg)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Error(msg)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Fatal(msg)
}
