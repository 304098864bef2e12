package openaichat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// mapHTTPError converts a non-2xx backend response into an error,
// extracting a descriptive message from the error body when present.
func mapHTTPError(resp *http.Response) error {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("backend rejected request: %s", message)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("backend authentication failed: %s", message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("backend rate limit exceeded: %s", message)
	default:
		return fmt.Errorf("backend error: %s", message)
	}
}

// extractErrorMessage tries to parse the response body as a Chat
// Completions error envelope.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
