package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/hasskey/internal/matcher"
)

// DeviceReport describes one input device and how the match table sees it.
type DeviceReport struct {
	Node     string            `json:"node" yaml:"node"`
	Syspath  string            `json:"syspath" yaml:"syspath"`
	Name     string            `json:"name" yaml:"name"`
	Match    string            `json:"match,omitempty" yaml:"match,omitempty"`
	Verdicts []matcher.Verdict `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`
}

// FormatDevices writes reports in the given format. Tables show one line per
// device with the first failing key of each config that did not match.
func FormatDevices(w io.Writer, reports []DeviceReport, format Format) error {
	formatter := NewFormatter(format)

	switch format {
	case FormatJSON, FormatYAML:
		if reports == nil {
			reports = []DeviceReport{}
		}
		return formatter.Format(w, reports)
	}

	data := Data{
		Headers:         []string{"Node", "Name", "Match", "Details"},
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft},
	}
	for _, r := range reports {
		match := r.Match
		if match == "" {
			match = "-"
		}
		data.Rows = append(data.Rows, []string{r.Node, r.Name, match, verdictSummary(r.Verdicts)})
	}
	return formatter.Format(w, data)
}

func verdictSummary(verdicts []matcher.Verdict) string {
	parts := make([]string, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Match {
			continue
		}
		switch v.Reason {
		case matcher.ReasonMismatch:
			parts = append(parts, fmt.Sprintf("%s: %s=%s", v.Name, v.Key, v.Value))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s %s", v.Name, v.Key, v.Reason))
		}
	}
	return strings.Join(parts, "; ")
}
