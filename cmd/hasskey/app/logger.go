package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/pkg/logging"
)

// NewLogger creates a configured logger based on the application
// configuration and installs it as the package default.
// Log level precedence (highest to lowest):
//  1. --log-level flag (explicit always wins)
//  2. -v count (-v info, -vv debug, -vvv trace)
//  3. HASSKEY_LOG_LEVEL or LOG_LEVEL environment variable
//  4. Default (warn)
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	logConfig := &logging.Config{
		Level:      level,
		Format:     config.LogFormat,
		Output:     config.LogOutput,
		TimeFormat: "log",
		NoColor:    config.NoColor,
		AddCaller:  level == "trace",
	}

	logger := logging.NewLoggerFromConfig(logConfig)
	logging.SetDefault(logger)
	return logger
}

// determineLogLevel determines the log level using clear precedence rules.
func determineLogLevel(config *Config) string {
	if config.LogLevel != "" {
		validated := validateLogLevel(config.LogLevel)
		if validated != config.LogLevel {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", config.LogLevel, validated)
		}
		return validated
	}

	if config.Verbose > 0 {
		return logging.LevelForVerbosity(config.Verbose)
	}

	if config.EnvLogLevel != "" {
		return validateLogLevel(config.EnvLogLevel)
	}

	return logging.LevelForVerbosity(0)
}

// validateLogLevel returns level if hasskey accepts it, otherwise "warn".
func validateLogLevel(level string) string {
	if logging.ValidLevel(level) {
		return level
	}
	return "warn"
}
