package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/hasskey/pkg/constants"
)

// Config holds the process configuration loaded from flags, environment
// variables and .env files. The device file itself is loaded by
// internal/config.
type Config struct {
	// Global flags
	Verbose int
	NoColor bool
	Format  string
	NoGrab  bool

	// Device file
	ConfigFile string

	// Logging configuration
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. HASSKEY_* environment variables
// 3. .env files
// 4. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	cfg := &Config{
		ConfigFile: viper.GetString("config"),
		NoColor:    viper.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		NoGrab:     viper.GetBool("no_grab"),
		Format:     viper.GetString("format"),

		EnvLogLevel: firstEnv("HASSKEY_LOG_LEVEL", "LOG_LEVEL"),
		LogFormat:   getEnvOrDefault("HASSKEY_LOG_FORMAT", "auto"),
		LogOutput:   getEnvOrDefault("HASSKEY_LOG_OUTPUT", "stderr"),
	}

	if cfg.ConfigFile == "" {
		cfg.ConfigFile = constants.DefaultConfigPath
	}

	return cfg, nil
}

// UpdateFromFlags copies the persistent flags the user actually set onto c,
// so flags take precedence over environment variables.
func (c *Config) UpdateFromFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("config") {
		c.ConfigFile = mustGetString(cmd, "config")
	}
	if flags.Changed("verbose") {
		c.Verbose = mustGetCount(cmd, "verbose")
	}
	if flags.Changed("log-level") {
		c.LogLevel = mustGetString(cmd, "log-level")
	}
	if flags.Changed("log-format") {
		c.LogFormat = mustGetString(cmd, "log-format")
	}
	if flags.Changed("log-output") {
		c.LogOutput = mustGetString(cmd, "log-output")
	}
	if flags.Changed("no-color") {
		c.NoColor = mustGetBool(cmd, "no-color")
	}
	if flags.Changed("format") {
		c.Format = mustGetString(cmd, "format")
	}
	if flags.Changed("no-grab") {
		c.NoGrab = mustGetBool(cmd, "no-grab")
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is loaded last but godotenv never overrides, so values
// already in the environment win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
