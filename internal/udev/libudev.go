package udev

import (
	"context"
	"fmt"

	libudev "github.com/jochenvg/go-udev"

	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// Subsystem reads the input subsystem from the udev database and netlink.
type Subsystem struct {
	u libudev.Udev
}

// New returns a Subsystem backed by libudev.
func New() *Subsystem {
	return &Subsystem{}
}

// Enumerate returns every initialized input device that has an evdev node,
// in udev order.
func (s *Subsystem) Enumerate(ctx context.Context) ([]Device, error) {
	e := s.u.NewEnumerate()
	if e == nil {
		return nil, errors.WrapDevice("enumerate", "", "", fmt.Errorf("udev_enumerate_new failed"))
	}
	if err := e.AddMatchSubsystem(constants.InputSubsystem); err != nil {
		return nil, errors.WrapDevice("enumerate", "", "", err)
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return nil, errors.WrapDevice("enumerate", "", "", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return nil, errors.WrapDevice("enumerate", "", "", err)
	}

	logger := logging.FromContext(ctx)
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if !IsEventNode(d.Devnode()) {
			continue
		}
		result = append(result, wrap(d))
	}
	logger.Debug().
		Int("input_devices", len(devices)).
		Int("event_nodes", len(result)).
		Msg("Enumerated input subsystem")
	return result, nil
}

// Monitor subscribes to input subsystem notifications. The returned channel
// is closed when ctx is done. Notifications for devices without an evdev
// node are dropped.
func (s *Subsystem) Monitor(ctx context.Context) (<-chan Notification, error) {
	m := s.u.NewMonitorFromNetlink(constants.NetlinkSource)
	if m == nil {
		return nil, errors.WrapDevice("monitor", "", "", fmt.Errorf("udev_monitor_new_from_netlink failed"))
	}
	if err := m.FilterAddMatchSubsystem(constants.InputSubsystem); err != nil {
		return nil, errors.WrapDevice("monitor", "", "", err)
	}

	devices, err := m.DeviceChan(ctx)
	if err != nil {
		return nil, errors.WrapDevice("monitor", "", "", err)
	}

	logger := logging.FromContext(ctx)
	out := make(chan Notification, constants.NotificationBufferSize)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return

			case d, ok := <-devices:
				if !ok {
					return
				}
				if !IsEventNode(d.Devnode()) {
					logger.Trace().
						Str("action", d.Action()).
						Str("syspath", d.Syspath()).
						Msg("Ignored notification without event node")
					continue
				}

				n := Notification{Action: ParseAction(d.Action()), Device: wrap(d)}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// device adapts a libudev device to Device. Properties and the parent are
// loaded on first use and cached.
type device struct {
	dev *libudev.Device

	props  map[string]string
	parent *device
	root   bool
}

func wrap(d *libudev.Device) *device {
	return &device{dev: d}
}

// Node implements Device.
func (d *device) Node() string {
	return d.dev.Devnode()
}

// Syspath implements Device.
func (d *device) Syspath() string {
	return d.dev.Syspath()
}

// Property implements matcher.Properties.
func (d *device) Property(key string) (string, bool) {
	if d.props == nil {
		d.props = d.dev.Properties()
		if d.props == nil {
			d.props = map[string]string{}
		}
	}
	value, ok := d.props[key]
	return value, ok
}

// Parent implements matcher.Properties.
func (d *device) Parent() matcher.Properties {
	if d.root {
		return nil
	}
	if d.parent == nil {
		p := d.dev.Parent()
		if p == nil {
			d.root = true
			return nil
		}
		d.parent = wrap(p)
	}
	return d.parent
}
