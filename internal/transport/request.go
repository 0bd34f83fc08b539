package transport

import (
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// maxErrorBody caps how much of an error response is kept in the APIError.
const maxErrorBody = 512

// CheckResponse consumes and closes resp. Any status outside 2xx is
// returned as an *errors.APIError carrying the start of the body.
func CheckResponse(resp *http.Response, service string) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	apiErr := errors.NewAPIError(service, resp.StatusCode, message)
	if resp.Request != nil && resp.Request.URL != nil {
		apiErr.Endpoint = resp.Request.URL.Redacted()
	}
	return apiErr
}
