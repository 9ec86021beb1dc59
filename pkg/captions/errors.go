package captions

import (
	"errors"
	"fmt"
)

var (
	// ErrThrottling means the platform answered 429. It is the only
	// recoverable failure.
	ErrThrottling = errors.New("captions: throttled by upstream")
	// ErrUnknownUpstream matches any *UpstreamError.
	ErrUnknownUpstream         = errors.New("captions: unexpected upstream status")
	ErrMissingCaptionsField    = errors.New("captions: caption tracks not found")
	ErrMissingCaptionsLanguage = errors.New("captions: no usable caption language")
	ErrMissingLanguageTrack    = errors.New("captions: no caption track for language")
	// ErrResponseTooLarge means a page or transcript exceeded its size cap.
	ErrResponseTooLarge = errors.New("captions: response body too large")
)

const maxErrorBody = 512

// UpstreamError keeps the status and a body snippet of a failed fetch.
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("captions: GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUnknownUpstream
}

// Retryable reports whether err should send the item back to the queue.
func Retryable(err error) bool {
	return errors.Is(err, ErrThrottling)
}
