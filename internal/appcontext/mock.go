package appcontext

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/input"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	DeviceFileFunc   func(...config.LoadOption) (*config.File, error)
	ConfigPathFunc   func() string
	DevicesFunc      func() DeviceSource
	OpenerFunc       func() input.Opener
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	OutputWriter     io.Writer
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// DeviceFile returns a device file using the mock function or an empty file.
func (m *Mock) DeviceFile(opts ...config.LoadOption) (*config.File, error) {
	if m.DeviceFileFunc != nil {
		return m.DeviceFileFunc(opts...)
	}
	return &config.File{}, nil
}

// ConfigPath returns the path using the mock function or "config.yaml".
func (m *Mock) ConfigPath() string {
	if m.ConfigPathFunc != nil {
		return m.ConfigPathFunc()
	}
	return "config.yaml"
}

// Devices returns a device source using the mock function or nil.
func (m *Mock) Devices() DeviceSource {
	if m.DevicesFunc != nil {
		return m.DevicesFunc()
	}
	return nil
}

// Opener returns an opener using the mock function or a non-grabbing evdev opener.
func (m *Mock) Opener() input.Opener {
	if m.OpenerFunc != nil {
		return m.OpenerFunc()
	}
	return input.EvdevOpener{}
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Output returns OutputWriter or io.Discard.
func (m *Mock) Output() io.Writer {
	if m.OutputWriter != nil {
		return m.OutputWriter
	}
	return io.Discard
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
