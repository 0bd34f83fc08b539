package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/hasskey/internal/appcontext"
	"github.com/agentstation/hasskey/internal/cmd/output"
	"github.com/agentstation/hasskey/internal/config"
	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/internal/udev"
	"github.com/agentstation/hasskey/pkg/errors"
)

type staticDevice struct {
	*matcher.Static
	node string
}

func (d staticDevice) Node() string    { return d.node }
func (d staticDevice) Syspath() string { return "/sys/class/input/" + d.node[len("/dev/input/"):] }

type staticSource []udev.Device

func (s staticSource) Enumerate(context.Context) ([]udev.Device, error) { return s, nil }
func (s staticSource) Monitor(context.Context) (<-chan udev.Notification, error) {
	return make(chan udev.Notification), nil
}

func testDevices() staticSource {
	return staticSource{
		staticDevice{
			Static: matcher.Chain(
				map[string]string{"DEVNAME": "/dev/input/event3", "ID_INPUT_KEYBOARD": "1"},
				map[string]string{"NAME": `"USB Keyboard"`},
			),
			node: "/dev/input/event3",
		},
		staticDevice{
			Static: matcher.Chain(
				map[string]string{"DEVNAME": "/dev/input/event4", "ID_INPUT_MOUSE": "1"},
				map[string]string{"NAME": `"USB Mouse"`},
			),
			node: "/dev/input/event4",
		},
	}
}

func TestReports(t *testing.T) {
	table := []matcher.DeviceConfig{{
		Name: "kbd",
		Rule: matcher.Rule{{Key: "ID_INPUT_KEYBOARD", Pattern: matcher.MustCompile("1")}},
	}}

	reports := Reports(testDevices(), table)
	require.Len(t, reports, 2)

	assert.Equal(t, "USB Keyboard", reports[0].Name)
	assert.Equal(t, "kbd", reports[0].Match)
	assert.Equal(t, "", reports[1].Match)
	require.Len(t, reports[1].Verdicts, 1)
	assert.Equal(t, matcher.ReasonMissing, reports[1].Verdicts[0].Reason)

	// no table, no verdicts
	reports = Reports(testDevices(), nil)
	assert.Nil(t, reports[0].Verdicts)
}

func TestListJSON(t *testing.T) {
	var buf bytes.Buffer
	app := &appcontext.Mock{
		DevicesFunc:      func() appcontext.DeviceSource { return testDevices() },
		OutputFormatFunc: func() string { return "json" },
		OutputWriter:     &buf,
		DeviceFileFunc: func(...config.LoadOption) (*config.File, error) {
			return config.Parse([]byte("devices:\n  - {name: mouse, filter: {ID_INPUT_MOUSE: '1'}}\n"), "inline", config.DevicesOnly())
		},
	}

	require.NoError(t, List(context.Background(), app))

	var got []output.DeviceReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].Match)
	assert.Equal(t, "mouse", got[1].Match)
}

func TestListWithoutConfigFile(t *testing.T) {
	var buf bytes.Buffer
	app := &appcontext.Mock{
		DevicesFunc:      func() appcontext.DeviceSource { return testDevices() },
		OutputFormatFunc: func() string { return "json" },
		OutputWriter:     &buf,
		DeviceFileFunc: func(...config.LoadOption) (*config.File, error) {
			return nil, errors.WrapIO("read", "config.yaml", os.ErrNotExist)
		},
	}

	require.NoError(t, List(context.Background(), app))
	assert.Contains(t, buf.String(), "/dev/input/event4")
}

func TestListInvalidConfig(t *testing.T) {
	app := &appcontext.Mock{
		DevicesFunc: func() appcontext.DeviceSource { return testDevices() },
		DeviceFileFunc: func(...config.LoadOption) (*config.File, error) {
			return nil, errors.NewValidationError("devices[0].name", nil, "is required")
		},
	}

	err := List(context.Background(), app)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestListRejectsUnknownFormat(t *testing.T) {
	app := &appcontext.Mock{OutputFormatFunc: func() string { return "csv" }}
	assert.Error(t, List(context.Background(), app))
}
