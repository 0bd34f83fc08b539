// Package constants provides shared constants used throughout the hasskey codebase.
// This includes timeouts, buffer sizes, file permissions, and device subsystem
// values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout bounds a single event delivery to Home Assistant
	DefaultHTTPTimeout = 10 * time.Second

	// DialTimeout is the timeout for establishing network connections
	DialTimeout = 5 * time.Second

	// KeepAliveInterval is the interval between keep-alive probes
	KeepAliveInterval = 30 * time.Second

	// ShutdownTimeout bounds cleanup after the root context is cancelled
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxAncestorDepth caps the parent walk during property lookup
	MaxAncestorDepth = 64

	// EventBufferSize is the buffer of the shared fan-in channel
	EventBufferSize = 256

	// NotificationBufferSize is the buffer between the udev monitor and the watcher
	NotificationBufferSize = 16

	// DeliveryQueueSize is the per-device queue of events awaiting delivery
	DeliveryQueueSize = 128

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections = 4
)

// Logging constants
const (
	// LogRotationSize is the maximum size of a log file before rotation, in megabytes
	LogRotationSize = 10

	// LogRotationAge is the maximum age of log files before deletion, in days
	LogRotationAge = 7

	// LogRotationBackups is the maximum number of old log files to retain
	LogRotationBackups = 5
)

// Device subsystem constants
const (
	// InputSubsystem is the udev subsystem hasskey enumerates and monitors
	InputSubsystem = "input"

	// NetlinkSource is the netlink group the hotplug monitor listens on
	NetlinkSource = "udev"

	// EventNodePrefix is the prefix of evdev character devices
	EventNodePrefix = "/dev/input/event"
)

// Default values
const (
	// DefaultConfigPath is the config file used when --config is not given
	DefaultConfigPath = "./config.yaml"

	// DefaultEventType is the Home Assistant event type fired for key events
	DefaultEventType = "hasskey"

	// EventsAPIPath is the Home Assistant endpoint prefix for firing events
	EventsAPIPath = "api/events/"

	// EnvPrefix is the prefix for environment overrides (HASSKEY_URL, ...)
	EnvPrefix = "HASSKEY"
)

// Format constants
const (
	// TimeFormatLog is the format used in log files and watch output
	TimeFormatLog = "2006-01-02 15:04:05.000"
)
