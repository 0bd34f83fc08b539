package errors_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/hasskey/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("home_assistant.url", "ftp://x", "scheme must be http or https")
		assert.Equal(t, "validation failed for field home_assistant.url: scheme must be http or https", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "no devices declared"}
		assert.Equal(t, "validation failed: no devices declared", err.Error())
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		unauthorized bool
		unavailable  bool
	}{
		{name: "401 is unauthorized", status: 401, unauthorized: true},
		{name: "403 is unauthorized", status: 403, unauthorized: true},
		{name: "502 is unavailable", status: 502, unavailable: true},
		{name: "400 is neither", status: 400},
		{name: "transport failure is neither", status: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("home-assistant", tt.status, "boom")
			assert.Equal(t, tt.unauthorized, pkgerrors.IsUnauthorized(err))
			assert.Equal(t, tt.unavailable, errors.Is(err, pkgerrors.ErrServiceUnavailable))
		})
	}

	t.Run("with wrapped error", func(t *testing.T) {
		baseErr := errors.New("connection refused")
		err := &pkgerrors.APIError{Service: "home-assistant", Message: baseErr.Error(), Err: baseErr}
		assert.Contains(t, err.Error(), "home-assistant")
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, baseErr)
	})
}

func TestDeviceError(t *testing.T) {
	t.Run("named device", func(t *testing.T) {
		err := pkgerrors.NewDeviceError("grab", "/dev/input/event3", "kbd", syscall.EBUSY)
		assert.Contains(t, err.Error(), "kbd")
		assert.Contains(t, err.Error(), "/dev/input/event3")
		assert.Contains(t, err.Error(), "grab")
		assert.False(t, pkgerrors.IsDeviceGone(err))
	})

	t.Run("subsystem", func(t *testing.T) {
		err := pkgerrors.NewDeviceError("monitor", "", "", errors.New("netlink unavailable"))
		assert.Equal(t, "device subsystem: monitor failed: netlink unavailable", err.Error())
	})

	t.Run("unplugged", func(t *testing.T) {
		err := pkgerrors.WrapDevice("read", "/dev/input/event7", "kbd", fmt.Errorf("read: %w", syscall.ENODEV))
		assert.True(t, pkgerrors.IsDeviceGone(err))
	})

	t.Run("nil passthrough", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapDevice("open", "/dev/input/event1", "", nil))
	})
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("devices[1]", "duplicate name \"kbd\"", nil)
	assert.Contains(t, err.Error(), "devices[1]")
	assert.Contains(t, err.Error(), "duplicate name")

	base := errors.New("missing")
	wrapped := pkgerrors.NewConfigError("", "token", base)
	assert.Equal(t, "configuration error: token", wrapped.Error())
	assert.Equal(t, base, wrapped.Unwrap())
}

func TestParseError(t *testing.T) {
	t.Run("with file and position", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "yaml",
			File:    "config.yaml",
			Line:    10,
			Column:  5,
			Message: "unexpected token",
		}
		assert.Contains(t, err.Error(), "config.yaml")
		assert.Contains(t, err.Error(), "10:5")
	})

	t.Run("format only", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "regex",
			Message: "missing closing )",
		}
		assert.Equal(t, "regex parse error: missing closing )", err.Error())
	})

	t.Run("wrap", func(t *testing.T) {
		baseErr := errors.New("EOF")
		wrapped := pkgerrors.WrapParse("yaml", "config.yaml", baseErr)
		parseErr, ok := wrapped.(*pkgerrors.ParseError)
		require.True(t, ok)
		assert.Equal(t, "yaml", parseErr.Format)
		assert.Equal(t, baseErr, parseErr.Unwrap())
	})
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("permission denied")
	err := pkgerrors.WrapIO("read", "/run/secrets/hass", baseErr)
	ioErr, ok := err.(*pkgerrors.IOError)
	require.True(t, ok)
	assert.Equal(t, "read", ioErr.Operation)
	assert.Contains(t, err.Error(), "/run/secrets/hass")
	assert.Equal(t, baseErr, ioErr.Unwrap())
	assert.Nil(t, pkgerrors.WrapIO("read", "file", nil))
}
