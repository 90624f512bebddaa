package domain

import (
	"fmt"
	"strings"
)

// ConfigError signals a missing dependency or credential at construction
// time. It is fatal: never retried, always propagated to the caller.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// ErrUnknownProvider is returned by the factories when the requested display
// name is not in the registry. The message lists the currently available
// alternatives so callers can self-correct.
type ErrUnknownProvider struct {
	Name      string
	Available []string
}

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider %q, available: [%s]",
		e.Name, strings.Join(e.Available, ", "))
}
