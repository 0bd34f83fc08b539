// Package app provides the application context and dependency management
// for the hasskey CLI. It centralizes configuration, logging and the
// device subsystem so commands receive them through appcontext.Interface.
package app

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/internal/appcontext"
	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/internal/udev"
	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// App represents the hasskey application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	output io.Writer

	// Device subsystem (lazy-initialized, singleton)
	mu      sync.RWMutex
	devices appcontext.DeviceSource
	opener  input.Opener
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration from the environment that can
// be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		output:  os.Stdout,
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, errors.NewConfigError("app", "load config", err)
	}
	app.config = cfg

	logger := NewLogger(cfg)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the --format value.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Output returns the writer for command output.
func (a *App) Output() io.Writer {
	return a.output
}

// ConfigPath returns the path of the device file.
func (a *App) ConfigPath() string {
	return a.config.ConfigFile
}

// DeviceFile loads the device file and logs its warnings.
func (a *App) DeviceFile(opts ...config.LoadOption) (*config.File, error) {
	file, err := config.Load(a.config.ConfigFile, opts...)
	if err != nil {
		return nil, err
	}
	for _, w := range file.Warnings {
		a.logger.Warn().Str("config", a.config.ConfigFile).Msg(w)
	}
	return file, nil
}

// Devices returns the udev subsystem, creating it on first use.
func (a *App) Devices() appcontext.DeviceSource {
	a.mu.RLock()
	if a.devices != nil {
		d := a.devices
		a.mu.RUnlock()
		return d
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.devices == nil {
		a.devices = udev.New()
	}
	return a.devices
}

// Opener returns the opener for matched devices. Devices are grabbed
// unless --no-grab was given.
func (a *App) Opener() input.Opener {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.opener != nil {
		return a.opener
	}
	return input.EvdevOpener{Grab: !a.config.NoGrab}
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		a.config = cfg
		logger := NewLogger(cfg)
		a.logger = &logger
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		logging.SetDefault(*logger)
		return nil
	}
}

// WithDeviceSource sets the device source (useful for testing).
func WithDeviceSource(src appcontext.DeviceSource) Option {
	return func(a *App) error {
		a.devices = src
		return nil
	}
}

// WithOpener sets the device opener (useful for testing).
func WithOpener(o input.Opener) Option {
	return func(a *App) error {
		a.opener = o
		return nil
	}
}

// WithOutput sets the writer for command output.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.output = w
		return nil
	}
}
