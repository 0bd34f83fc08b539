package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// Writer prints one line per event. With JSON set each line is the same
// body the Home Assistant sink would post.
type Writer struct {
	JSON bool

	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer, asJSON bool) *Writer {
	return &Writer{w: w, JSON: asJSON}
}

// Deliver implements Sink.
func (s *Writer) Deliver(_ context.Context, ev input.KeyEvent) error {
	var line string
	if s.JSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return errors.WrapParse("json", "event", err)
		}
		line = string(data) + "\n"
	} else {
		line = fmt.Sprintf("%s  %-16s %-20s %s\n",
			ev.Time.Time.Local().Format(constants.TimeFormatLog), ev.Device, ev.KeyName(), ev.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line); err != nil {
		return errors.WrapIO("write", "output", err)
	}
	return nil
}
