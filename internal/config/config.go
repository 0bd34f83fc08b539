// Package config loads the device file: the Home Assistant connection and
// the ordered table of devices to watch.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// Environment variables that override the file.
const (
	EnvURL   = constants.EnvPrefix + "_URL"
	EnvToken = constants.EnvPrefix + "_TOKEN"
)

// File is a loaded and validated device file.
type File struct {
	HomeAssistant HomeAssistant
	Devices       []Device
	// Warnings are non-fatal findings, such as filter keys without a pattern.
	Warnings []string
}

// HomeAssistant is the event endpoint configuration.
type HomeAssistant struct {
	URL       *url.URL
	Token     string
	EventType string
	Timeout   time.Duration
}

// Device is one entry of the match table.
type Device struct {
	Name string
	// Kind is the form the entry was written in: filter, path, input or device.
	Kind string
	Rule matcher.Rule
}

// Table returns the devices as a match table, in file order.
func (f *File) Table() []matcher.DeviceConfig {
	table := make([]matcher.DeviceConfig, 0, len(f.Devices))
	for _, d := range f.Devices {
		table = append(table, matcher.DeviceConfig{Name: d.Name, Rule: d.Rule})
	}
	return table
}

type rawFile struct {
	HomeAssistant      *rawHomeAssistant `yaml:"home_assistant"`
	HomeAssistantDash  *rawHomeAssistant `yaml:"home-assistant"`
	HomeAssistantShort *rawHomeAssistant `yaml:"hass"`
	Devices            []rawDevice       `yaml:"devices"`
}

type rawHomeAssistant struct {
	URL       string `yaml:"url"`
	Token     any    `yaml:"token"`
	EventType string `yaml:"event_type"`
	Timeout   string `yaml:"timeout"`
}

type rawDevice struct {
	Name   string        `yaml:"name"`
	Filter yaml.MapSlice `yaml:"filter"`
	Path   string        `yaml:"path"`
	Input  string        `yaml:"input"`
	Device *DeviceID     `yaml:"device"`
}

// LoadOption adjusts how a device file is validated.
type LoadOption func(*loadOptions)

type loadOptions struct {
	devicesOnly bool
}

// DevicesOnly skips the home_assistant section. Used by commands that never
// deliver, such as watch and devices.
func DevicesOnly() LoadOption {
	return func(o *loadOptions) {
		o.devicesOnly = true
	}
}

// Load reads and validates the device file at path.
func Load(path string, opts ...LoadOption) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data, path, opts...)
}

// Parse validates a device file held in memory. source names it in errors.
func Parse(data []byte, source string, opts ...LoadOption) (*File, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var raw rawFile
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.Strict()); err != nil {
		return nil, errors.NewParseError("yaml", source, err.Error(), err)
	}

	hass, err := pickHomeAssistant(&raw)
	if err != nil {
		return nil, err
	}

	f := &File{}
	if !o.devicesOnly {
		if f.HomeAssistant, err = buildHomeAssistant(hass); err != nil {
			return nil, err
		}
	}
	if err := f.buildDevices(raw.Devices); err != nil {
		return nil, err
	}
	return f, nil
}

func pickHomeAssistant(raw *rawFile) (*rawHomeAssistant, error) {
	var found *rawHomeAssistant
	for _, h := range []*rawHomeAssistant{raw.HomeAssistant, raw.HomeAssistantDash, raw.HomeAssistantShort} {
		if h == nil {
			continue
		}
		if found != nil {
			return nil, errors.NewValidationError("home_assistant", nil,
				"set only one of home_assistant, home-assistant or hass")
		}
		found = h
	}
	if found == nil {
		found = &rawHomeAssistant{}
	}
	return found, nil
}

func buildHomeAssistant(raw *rawHomeAssistant) (HomeAssistant, error) {
	hass := HomeAssistant{
		EventType: raw.EventType,
		Timeout:   constants.DefaultHTTPTimeout,
	}
	if hass.EventType == "" {
		hass.EventType = constants.DefaultEventType
	}

	rawURL := raw.URL
	if v := GetString(EnvURL); v != "" {
		rawURL = v
	}
	if rawURL == "" {
		return hass, errors.NewValidationError("home_assistant.url", nil, "is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return hass, errors.WrapValidation("home_assistant.url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return hass, errors.NewValidationError("home_assistant.url", rawURL, "must be an absolute http or https URL")
	}
	hass.URL = u

	if v := GetString(EnvToken); v != "" {
		hass.Token = v
	} else if hass.Token, err = resolveSecret(raw.Token); err != nil {
		return hass, err
	}
	if hass.Token == "" {
		return hass, errors.NewValidationError("home_assistant.token", nil, "resolved to an empty value")
	}

	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return hass, errors.WrapValidation("home_assistant.timeout", err)
		}
		if d <= 0 {
			return hass, errors.NewValidationError("home_assistant.timeout", raw.Timeout, "must be positive")
		}
		hass.Timeout = d
	}

	return hass, nil
}

func (f *File) buildDevices(raw []rawDevice) error {
	seen := make(map[string]bool, len(raw))

	for i, rd := range raw {
		if rd.Name == "" {
			return errors.NewValidationError(fmt.Sprintf("devices[%d].name", i), nil, "is required")
		}
		if seen[rd.Name] {
			return errors.NewValidationError(fmt.Sprintf("devices[%d].name", i), rd.Name, "duplicate device name")
		}
		seen[rd.Name] = true

		dev, warnings, err := buildDevice(rd)
		if err != nil {
			return err
		}
		f.Devices = append(f.Devices, dev)
		f.Warnings = append(f.Warnings, warnings...)
	}

	if len(f.Devices) == 0 {
		f.Warnings = append(f.Warnings, "no devices configured, nothing will be watched")
	}
	return nil
}

func buildDevice(rd rawDevice) (Device, []string, error) {
	var kinds []string
	if rd.Filter != nil {
		kinds = append(kinds, "filter")
	}
	if rd.Path != "" {
		kinds = append(kinds, "path")
	}
	if rd.Input != "" {
		kinds = append(kinds, "input")
	}
	if rd.Device != nil {
		kinds = append(kinds, "device")
	}
	if len(kinds) != 1 {
		return Device{}, nil, errors.NewValidationError(fmt.Sprintf("devices[%s]", rd.Name), kinds,
			"must set exactly one of filter, path, input or device")
	}

	dev := Device{Name: rd.Name, Kind: kinds[0]}
	var warnings []string
	switch dev.Kind {
	case "filter":
		rule, w, err := filterRule(rd.Name, rd.Filter)
		if err != nil {
			return Device{}, nil, err
		}
		dev.Rule, warnings = rule, w
	case "path":
		dev.Rule = pathRule(rd.Path)
	case "input":
		dev.Rule = inputRule(rd.Input)
	case "device":
		dev.Rule = deviceRule(*rd.Device)
	}
	return dev, warnings, nil
}
