package main

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer, g *Globals) *log.Logger {
	level := log.InfoLevel
	if g.Debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	switch g.LogFormat {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	}
	return logger
}
