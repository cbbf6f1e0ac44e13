package indicator

import "errors"

// Attempt-level failures. Each one advances the cascade to the next proxy.
var (
	ErrNetwork            = errors.New("network error")
	ErrTimeout            = errors.New("attempt timed out")
	ErrHTTPStatus         = errors.New("non-2xx status")
	ErrValidationRejected = errors.New("payload rejected")
	ErrRateLimited        = errors.New("rate limit wait failed")
)

// ErrAllProxiesExhausted is returned once every proxy entry failed for a URL.
var ErrAllProxiesExhausted = errors.New("all proxies exhausted")

// Payload-level failures. The pipeline still yields an estimated reading.
var (
	ErrParse          = errors.New("payload parse failed")
	ErrExtractionMiss = errors.New("no in-range value found")
)

// ErrPipelinePanic marks a recovered panic inside one descriptor pipeline.
var ErrPipelinePanic = errors.New("pipeline panic")

// LabelFor maps a pipeline error to the provenance label of the synthesized reading.
func LabelFor(err error) string {
	switch {
	case errors.Is(err, ErrAllProxiesExhausted):
		return LabelFallback
	case errors.Is(err, ErrParse), errors.Is(err, ErrExtractionMiss):
		return LabelEstimated
	default:
		return LabelError
	}
}
