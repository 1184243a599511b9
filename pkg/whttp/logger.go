package whttp

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type leveledLogger struct {
	l logrus.FieldLogger
}

// LeveledLogger routes retryablehttp's logging into logrus. Retry chatter
// goes to debug so it only shows with -l debug.
func LeveledLogger(l logrus.FieldLogger) retryablehttp.LeveledLogger {
	return leveledLogger{l: l}
}

func (ll leveledLogger) with(keysAndValues []interface{}) logrus.FieldLogger {
	if len(keysAndValues) == 0 {
		return ll.l
	}
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return ll.l.WithFields(fields)
}

func (ll leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	ll.with(keysAndValues).Error(msg)
}

func (ll leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	ll.with(keysAndValues).Debug(msg)
}

func (ll leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	ll.with(keysAndValues).Debug(msg)
}

func (ll leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	ll.with(keysAndValues).Warn(msg)
}
