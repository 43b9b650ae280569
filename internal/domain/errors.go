package domain

import (
	"errors"
	"fmt"
)

// Every failure is terminal for the run: components return these errors
// up to the driver, which prints a message and exits non-zero. Nothing is
// caught and retried internally; the next scheduled run is the retry.
var (
	ErrConfigMissing       = errors.New("configuration file does not exist")
	ErrConfigWrite         = errors.New("could not write configuration file")
	ErrUpstreamTimeout     = errors.New("upstream API timed out")
	ErrUpstreamUnavailable = errors.New("could not connect to upstream API")
	ErrRateLimited         = errors.New("upstream API rate limit reached")
	ErrNotify              = errors.New("could not deliver notification")
)

// UpstreamError reports a non-200 envelope code that is not the rate
// limit. It wraps nothing: the code is the whole story.
type UpstreamError struct {
	Code int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API returned code %d", e.Code)
}
