package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"shift-planner/internal/config"
)

// Log - общий логгер процесса
var Log = logrus.New()

// Init настраивает общий логгер по конфигурации
func Init(cfg *config.Config) *logrus.Logger {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if cfg.IsProduction() {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.Debugf("Log level set to: %s", Log.GetLevel().String())
	return Log
}

// Component - логгер компонента с полем component
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Discard - логгер, который ничего не пишет. Нужен в тестах.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
