package simulator

import "errors"

var (
	// ErrInvalidConfig is returned when the run configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid simulator config")
	// ErrUnhealthy is returned when the service does not answer its health check.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status")
)
