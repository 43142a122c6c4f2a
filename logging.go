package main

import (
	"os"

	"github.com/charmbracelet/log"
)

// newLogger builds the process-wide structured logger. Verbosity is
// gated on cfg.verbose; --log-json switches the output formatter from
// human-readable text to JSON.
func newLogger(cfg *Config) *log.Logger {
	level := log.WarnLevel
	if cfg.verbose {
		level = log.DebugLevel
	}

	opts := log.Options{
		ReportTimestamp: true,
		Prefix:          "spektrum",
		Level:           level,
	}

	logger := log.NewWithOptions(os.Stderr, opts)
	if cfg.logJSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	log.SetDefault(logger)
	return logger
}
