package alphavantage

import "fmt"

// ErrRateLimitExceeded signals the in-band rate-limit notice ("Note" or an
// "Information" message mentioning the rate). Transient: the retry policy
// backs off and tries again before surfacing it.
type ErrRateLimitExceeded struct {
	Note string
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage rate limit exceeded: %s", e.Note)
}

// ErrAPIMessage signals the in-band "Error Message" field, which Alpha
// Vantage uses instead of HTTP status codes for bad symbols and parameters.
type ErrAPIMessage struct {
	Message string
}

func (e ErrAPIMessage) Error() string {
	return fmt.Sprintf("alpha vantage error: %s", e.Message)
}
