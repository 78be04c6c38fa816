package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable wraps transport failures: DNS, connect, timeout, cancellation.
	ErrUnreachable = errors.New("feed: unreachable")
	// ErrMalformed means the body was not a non-empty JSON string.
	ErrMalformed = errors.New("feed: malformed response")
	// ErrIndexOutOfRange is returned by RegionStatus for indices past the feed end.
	ErrIndexOutOfRange = errors.New("feed: index out of range")
)

// HTTPError is a non-200 answer from the feed.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feed: http %d", e.StatusCode)
	}
	return fmt.Sprintf("feed: http %d: %s", e.StatusCode, e.Body)
}
