// Package input turns raw evdev events from one opened device into key
// state changes tagged with the device's logical name.
package input

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"github.com/holoplot/go-evdev"
)

// State is the direction of a key transition.
type State string

// Key states as delivered to the sink.
const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// Raw EV_KEY values reported by the kernel.
const (
	valueRelease int32 = 0
	valuePress   int32 = 1
	valueRepeat  int32 = 2
)

// Disposition tells the caller what Normalize did with a raw event.
type Disposition int

// Dispositions returned by Normalize.
const (
	// DispositionKey means a KeyEvent was produced.
	DispositionKey Disposition = iota
	// DispositionIgnored means the raw event was not a key event (SYN, MSC, REL, ...).
	DispositionIgnored
	// DispositionRepeat means the event was a kernel auto-repeat.
	DispositionRepeat
	// DispositionUnknown means an EV_KEY event carried an unexpected value.
	DispositionUnknown
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case DispositionKey:
		return "key"
	case DispositionIgnored:
		return "ignored"
	case DispositionRepeat:
		return "repeat"
	case DispositionUnknown:
		return "unknown"
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// Identity names an opened device.
type Identity struct {
	Name string `json:"name" yaml:"name"`
	Node string `json:"node" yaml:"node"`
}

// String returns "name (node)".
func (i Identity) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Node)
}

// KeyEvent is a single key press or release on a named device.
type KeyEvent struct {
	Device string
	Key    evdev.EvCode
	State  State
	Time   utc.Time
}

// KeyName returns the kernel symbol for the key, e.g. KEY_A.
func (e KeyEvent) KeyName() string {
	return evdev.CodeName(evdev.EV_KEY, e.Key)
}

// String formats the event for humans.
func (e KeyEvent) String() string {
	return fmt.Sprintf("%s %s %s", e.Device, e.KeyName(), e.State)
}

// wireEvent is the JSON body posted to the event endpoint. Key is the
// numeric kernel key code; automations match on it.
type wireEvent struct {
	Device string `json:"device"`
	Key    uint16 `json:"key"`
	Value  State  `json:"value"`
}

// MarshalJSON emits {"device", "key", "value"}. Time is not sent.
func (e KeyEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Device: e.Device, Key: uint16(e.Key), Value: e.State})
}

// Normalize converts a raw event from the named device. Only EV_KEY events
// with value 0 (release) or 1 (press) produce a KeyEvent.
func Normalize(device string, raw *evdev.InputEvent) (KeyEvent, Disposition) {
	if raw == nil || raw.Type != evdev.EV_KEY {
		return KeyEvent{}, DispositionIgnored
	}

	var state State
	switch raw.Value {
	case valueRelease:
		state = StateUp
	case valuePress:
		state = StateDown
	case valueRepeat:
		return KeyEvent{}, DispositionRepeat
	default:
		return KeyEvent{}, DispositionUnknown
	}

	return KeyEvent{
		Device: device,
		Key:    raw.Code,
		State:  state,
		Time:   eventTime(raw),
	}, DispositionKey
}

func eventTime(raw *evdev.InputEvent) utc.Time {
	if raw.Time.Sec == 0 && raw.Time.Usec == 0 {
		return utc.Now()
	}
	return utc.New(time.Unix(int64(raw.Time.Sec), int64(raw.Time.Usec)*int64(time.Microsecond)))
}
