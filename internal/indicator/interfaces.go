package indicator

import (
	"context"
	"time"
)

// Fetcher performs one HTTP GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Validator accepts or rejects a payload before extraction. A nil error means accept.
type Validator interface {
	Validate(body []byte, kind Kind) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
