// Package sink delivers key events to their destination: the Home Assistant
// event API or a local writer.
package sink

import (
	"context"
	"net/url"
	"strings"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/internal/transport"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// Sink receives normalized key events.
type Sink interface {
	Deliver(ctx context.Context, ev input.KeyEvent) error
}

// ServiceName identifies Home Assistant in errors and logs.
const ServiceName = "home assistant"

// Hass fires one Home Assistant event per key event.
type Hass struct {
	client   *transport.Client
	endpoint string
}

// Endpoint resolves the event API URL for eventType against base, the way
// a relative link is resolved: a base path without a trailing slash has its
// last segment replaced.
func Endpoint(base *url.URL, eventType string) (string, error) {
	if base == nil || !base.IsAbs() {
		return "", errors.NewValidationError("url", base, "must be an absolute URL")
	}
	if eventType == "" {
		eventType = constants.DefaultEventType
	}
	if strings.ContainsAny(eventType, "/?#") {
		return "", errors.NewValidationError("event_type", eventType, "must not contain '/', '?' or '#'")
	}
	ref := &url.URL{Path: constants.EventsAPIPath + eventType}
	return base.ResolveReference(ref).String(), nil
}

// NewHass returns a sink posting to the event API of the instance at base.
func NewHass(client *transport.Client, base *url.URL, eventType string) (*Hass, error) {
	endpoint, err := Endpoint(base, eventType)
	if err != nil {
		return nil, err
	}
	return &Hass{client: client, endpoint: endpoint}, nil
}

// URL returns the resolved event endpoint.
func (h *Hass) URL() string {
	return h.endpoint
}

// Deliver implements Sink. Any transport error or non-2xx status is
// returned as an *errors.APIError.
func (h *Hass) Deliver(ctx context.Context, ev input.KeyEvent) error {
	resp, err := h.client.PostJSON(ctx, h.endpoint, ev)
	if err != nil {
		return &errors.APIError{
			Service:  ServiceName,
			Message:  err.Error(),
			Endpoint: h.endpoint,
			Err:      err,
		}
	}
	return transport.CheckResponse(resp, ServiceName)
}
