package repository

import "errors"

// Sentinel kinds for ledger and leaderboard errors.
var (
	ErrNotFound       = errors.New("user not found")
	ErrRegionNotFound = errors.New("region not found")
	ErrInvalidLimit   = errors.New("invalid leaderboard limit")
	ErrInvalidCommand = errors.New("invalid ledger command")
)
