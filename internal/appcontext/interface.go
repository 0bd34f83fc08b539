// Package appcontext provides the shared application context interface
// used by all commands. This eliminates interface duplication across
// command packages and provides a single source of truth for app dependencies.
package appcontext

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/internal/udev"
)

// DeviceSource enumerates input devices and follows hotplug notifications.
// *udev.Subsystem implements it.
type DeviceSource interface {
	Enumerate(ctx context.Context) ([]udev.Device, error)
	Monitor(ctx context.Context) (<-chan udev.Notification, error)
}

// Interface defines the application context interface that commands need.
// The App struct from cmd/hasskey/app automatically implements this interface,
// providing dependency injection for commands while maintaining testability.
//
// Commands should accept this interface rather than the concrete App type,
// allowing for easier testing with mock implementations.
type Interface interface {
	// DeviceFile loads and validates the configured device file.
	DeviceFile(opts ...config.LoadOption) (*config.File, error)

	// ConfigPath returns the path of the device file.
	ConfigPath() string

	// Devices returns the input device source.
	Devices() DeviceSource

	// Opener returns the opener used for matched devices.
	Opener() input.Opener

	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// Output returns the writer for command output (stdout by default).
	Output() io.Writer

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
