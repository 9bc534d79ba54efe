package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

var allLogLevels = ""

func init() {
	names := make([]string, 0, len(logrus.AllLevels))
	for _, logLevel := range logrus.AllLevels {
		names = append(names, strings.ToUpper(logLevel.String()))
	}
	allLogLevels = strings.Join(names, "|")

	// Usable before the CLI has parsed --log-level.
	logger = newLogger(os.Stderr, logrus.InfoLevel)
}

func initLogger(lvl logrus.Level) {
	logger = newLogger(os.Stderr, lvl)
}

func newLogger(out io.Writer, lvl logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out:   out,
		Level: lvl,
		Hooks: make(logrus.LevelHooks),

		Formatter: &logrus.TextFormatter{
			DisableColors: false,

			DisableLevelTruncation: true,
			PadLevelText:           true,
			DisableSorting:         false,

			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		},
	}
}
