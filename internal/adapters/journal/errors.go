package journal

import "errors"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("journal closed")
	// ErrInvalidRecord is returned for records that cannot be replayed.
	ErrInvalidRecord = errors.New("invalid journal record")
)
