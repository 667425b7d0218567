package logsvc

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/masomodb/core"
)

// rollbarHook forwards warnings and errors to Rollbar.
type rollbarHook struct{}

func newRollbarHook(conf *core.Config) rollbarHook {
	host, _ := os.Hostname()
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(true)
	return rollbarHook{}
}

func (rollbarHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

// expected fmt: msg | error, map[string]interface{}
func (rollbarHook) Fire(e *logrus.Entry) error {
	args := []interface{}{e.Message}
	extras := make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		if err, ok := v.(error); ok && k == logrus.ErrorKey {
			args = append(args, err)
			continue
		}
		extras[k] = v
	}
	if len(extras) > 0 {
		args = append(args, extras)
	}

	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		rollbar.Critical(args...)
		rollbar.Wait() // the process is about to exit
	case logrus.ErrorLevel:
		rollbar.Error(args...)
	default:
		rollbar.Warning(args...)
	}
	return nil
}
