package contentfilter

import (
	"fmt"
	"strings"
)

// CSRFError means the filter's home page did not yield a csrf token, usually
// because the page layout changed or the request was blocked upstream.
type CSRFError struct {
	BodyPreview string
}

func (e *CSRFError) Error() string {
	return fmt.Sprintf("csrf token not found in filter home page (body: %s)", e.BodyPreview)
}

// ProtocolError means the lookup endpoint answered with something other than
// a valid 2xx JSON response.
type ProtocolError struct {
	StatusCode  int
	BodyPreview string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("filter lookup returned status %d (body: %s)", e.StatusCode, e.BodyPreview)
}

// IncompleteError means the lookup answered without covering every requested
// name. Partial answers are rejected wholesale rather than guessed at.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("filter response missing %d name(s): %s",
		len(e.Missing), strings.Join(e.Missing, ", "))
}

const previewLimit = 200

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > previewLimit {
		return s[:previewLimit] + "..."
	}
	return s
}
