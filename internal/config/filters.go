package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// udev property keys used by the shorthand filters.
const (
	keyDevName  = "DEVNAME"
	keyDevLinks = "DEVLINKS"
	keyName     = "NAME"
	keyProduct  = "PRODUCT"
)

// DeviceID selects a device by its input id. Unset fields match any value.
type DeviceID struct {
	BusType *uint16 `yaml:"bus_type,omitempty" json:"bus_type,omitempty"`
	Vendor  *uint16 `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	Product *uint16 `yaml:"product,omitempty" json:"product,omitempty"`
	Version *uint16 `yaml:"version,omitempty" json:"version,omitempty"`
}

// filterRule converts an explicit filter mapping. Keys keep their file
// order. A null value is kept as an absent pattern.
func filterRule(device string, filter yaml.MapSlice) (matcher.Rule, []string, error) {
	rule := make(matcher.Rule, 0, len(filter))
	var warnings []string
	if len(filter) == 0 {
		warnings = append(warnings, fmt.Sprintf("device %q: empty filter matches every input device", device))
	}

	for _, item := range filter {
		key := fmt.Sprint(item.Key)
		if key == "" {
			return nil, nil, errors.NewValidationError(fieldPath(device, "filter"), item.Key, "property key must not be empty")
		}

		if item.Value == nil {
			rule = append(rule, matcher.Condition{Key: key})
			warnings = append(warnings, fmt.Sprintf(
				"device %q: filter key %s has no pattern and will never match", device, key))
			continue
		}

		var expr string
		switch v := item.Value.(type) {
		case string:
			expr = v
		case bool, int, int64, uint64, float64:
			expr = fmt.Sprint(v)
		default:
			return nil, nil, errors.NewValidationError(fieldPath(device, "filter."+key), item.Value,
				fmt.Sprintf("pattern must be a string, got %T", item.Value))
		}

		pattern, err := matcher.Compile(expr)
		if err != nil {
			return nil, nil, errors.NewConfigError(fieldPath(device, "filter."+key), "invalid pattern", err)
		}
		rule = append(rule, matcher.Condition{Key: key, Pattern: pattern})
	}

	return rule, warnings, nil
}

// pathRule matches an event node by name or one of its udev symlinks
// (/dev/input/by-id/..., /dev/input/by-path/...).
func pathRule(path string) matcher.Rule {
	if strings.HasPrefix(path, constants.EventNodePrefix) {
		return matcher.Rule{{Key: keyDevName, Pattern: matcher.Literal(path)}}
	}
	// DEVLINKS is a space separated list
	expr := `(?:.* )?` + regexp.QuoteMeta(path) + `(?: .*)?`
	return matcher.Rule{{Key: keyDevLinks, Pattern: matcher.MustCompile(expr)}}
}

// inputRule matches the kernel name of the input device. udev reports NAME
// with surrounding quotes.
func inputRule(name string) matcher.Rule {
	return matcher.Rule{{Key: keyName, Pattern: matcher.Literal(`"` + name + `"`)}}
}

// deviceRule matches PRODUCT, which udev formats as bus/vendor/product/version
// in unpadded lowercase hex.
func deviceRule(id DeviceID) matcher.Rule {
	part := func(v *uint16) string {
		if v == nil {
			return "[0-9a-f]+"
		}
		return fmt.Sprintf("%x", *v)
	}
	expr := strings.Join([]string{part(id.BusType), part(id.Vendor), part(id.Product), part(id.Version)}, "/")
	return matcher.Rule{{Key: keyProduct, Pattern: matcher.MustCompile(expr)}}
}

func fieldPath(device, field string) string {
	return fmt.Sprintf("devices[%s].%s", device, field)
}
