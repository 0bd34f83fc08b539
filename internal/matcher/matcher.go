// Package matcher decides which configured logical device, if any, a
// candidate input device is. Properties are looked up on the device first
// and then on each ancestor in turn, so a rule can match on attributes that
// udev only reports on the parent (USB vendor, HID name, ...).
package matcher

import (
	"github.com/agentstation/hasskey/pkg/constants"
)

// Properties is a device's property lookup with access to its parent.
type Properties interface {
	// Property returns the raw value for key on this device only.
	Property(key string) (string, bool)
	// Parent returns the parent device, or nil at the root of the tree.
	Parent() Properties
}

// Condition is one key/pattern pair of a rule. A nil Pattern never matches.
type Condition struct {
	Key     string
	Pattern *Pattern
}

// Rule is an ordered list of conditions that must all hold.
type Rule []Condition

// DeviceConfig names a device and the rule that identifies it.
type DeviceConfig struct {
	Name string
	Rule Rule
}

// Reason explains why a condition did not hold.
type Reason string

// Reasons reported by Explain.
const (
	ReasonMatched   Reason = ""
	ReasonMissing   Reason = "missing"
	ReasonNoPattern Reason = "no pattern"
	ReasonMismatch  Reason = "mismatch"
)

// Verdict is the outcome of one DeviceConfig against one device.
type Verdict struct {
	Name   string `json:"name" yaml:"name"`
	Match  bool   `json:"match" yaml:"match"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"` // first failing key, empty on match
	Reason Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"` // value found for Key, if any
}

// Lookup walks from dev up through its ancestors and returns the first value
// recorded for key.
func Lookup(dev Properties, key string) (string, bool) {
	for depth := 0; dev != nil && depth < constants.MaxAncestorDepth; depth++ {
		if value, ok := dev.Property(key); ok {
			return value, true
		}
		dev = dev.Parent()
	}
	return "", false
}

// Match returns the name of the first DeviceConfig in table whose rule holds
// for dev.
func Match(dev Properties, table []DeviceConfig) (string, bool) {
	for _, cfg := range table {
		if cfg.Rule.Holds(dev) {
			return cfg.Name, true
		}
	}
	return "", false
}

// Explain evaluates every DeviceConfig against dev without stopping at the
// first match. Used for diagnostics.
func Explain(dev Properties, table []DeviceConfig) []Verdict {
	verdicts := make([]Verdict, 0, len(table))
	for _, cfg := range table {
		ok, key, reason, value := evaluate(dev, cfg.Rule)
		verdicts = append(verdicts, Verdict{
			Name:   cfg.Name,
			Match:  ok,
			Key:    key,
			Reason: reason,
			Value:  value,
		})
	}
	return verdicts
}

// Holds reports whether every condition of r holds for dev.
func (r Rule) Holds(dev Properties) bool {
	ok, _, _, _ := evaluate(dev, r)
	return ok
}

func evaluate(dev Properties, rule Rule) (bool, string, Reason, string) {
	for _, cond := range rule {
		value, found := Lookup(dev, cond.Key)
		switch {
		case !found:
			return false, cond.Key, ReasonMissing, ""
		case cond.Pattern == nil:
			// A key listed without a pattern can never match, even when present.
			return false, cond.Key, ReasonNoPattern, value
		case !cond.Pattern.Match([]byte(value)):
			return false, cond.Key, ReasonMismatch, value
		}
	}
	return true, "", ReasonMatched, ""
}
