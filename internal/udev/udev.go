// Package udev discovers input devices and follows hotplug notifications
// through libudev.
package udev

import (
	"strings"

	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/pkg/constants"
)

// Device is a candidate input device.
type Device interface {
	matcher.Properties
	// Node is the device node, e.g. /dev/input/event3. Empty for
	// devices without one.
	Node() string
	// Syspath is the sysfs path of the device.
	Syspath() string
}

// Action is the kind of a hotplug notification.
type Action int

// Hotplug actions.
const (
	ActionOther Action = iota
	ActionAdd
	ActionRemove
)

// String returns the udev action name.
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	}
	return "other"
}

// ParseAction maps a udev action string to an Action.
func ParseAction(action string) Action {
	switch action {
	case "add":
		return ActionAdd
	case "remove":
		return ActionRemove
	}
	return ActionOther
}

// Notification is one hotplug event for the input subsystem.
type Notification struct {
	Action Action
	Device Device
}

// IsEventNode reports whether node is an evdev character device.
func IsEventNode(node string) bool {
	return strings.HasPrefix(node, constants.EventNodePrefix)
}

// InputName returns the kernel name of the input device (the NAME property
// of the device or its nearest ancestor) without udev's surrounding quotes.
func InputName(dev matcher.Properties) string {
	name, ok := matcher.Lookup(dev, "NAME")
	if !ok {
		return ""
	}
	return strings.Trim(name, `"`)
}
