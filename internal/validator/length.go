// Package validator rejects proxy payloads that cannot hold real indicator data.
package validator

import (
	"bytes"
	"fmt"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// Default minimum payload sizes, in bytes.
const (
	DefaultMinJSONBytes = 100
	DefaultMinHTMLBytes = 1000
)

// Length implements minimum-size rules plus a JSON shape sniff.
type Length struct {
	MinJSONBytes int
	MinHTMLBytes int
}

// NewLength creates a validator. Zero thresholds fall back to the defaults.
func NewLength(minJSON, minHTML int) *Length {
	if minJSON <= 0 {
		minJSON = DefaultMinJSONBytes
	}
	if minHTML <= 0 {
		minHTML = DefaultMinHTMLBytes
	}
	return &Length{MinJSONBytes: minJSON, MinHTMLBytes: minHTML}
}

// proxy error pages served with a 200 status.
var errorPageMarkers = [][]byte{
	[]byte("<!doctype"),
	[]byte("<html"),
}

// Validate accepts a payload when it is long enough for its kind. JSON payloads must
// also start with an object or array.
func (l *Length) Validate(body []byte, kind indicator.Kind) error {
	switch kind {
	case indicator.KindJSON:
		if len(body) < l.MinJSONBytes {
			return fmt.Errorf("%w: json payload %d bytes < %d", indicator.ErrValidationRejected, len(body), l.MinJSONBytes)
		}
		if looksLikeHTML(body) {
			return fmt.Errorf("%w: json payload is an html page", indicator.ErrValidationRejected)
		}
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
			return fmt.Errorf("%w: json payload is not an object or array", indicator.ErrValidationRejected)
		}
		return nil
	case indicator.KindHTML:
		if len(body) < l.MinHTMLBytes {
			return fmt.Errorf("%w: html payload %d bytes < %d", indicator.ErrValidationRejected, len(body), l.MinHTMLBytes)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", indicator.ErrValidationRejected, kind)
	}
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	for _, marker := range errorPageMarkers {
		if bytes.HasPrefix(head, marker) {
			return true
		}
	}
	return false
}
