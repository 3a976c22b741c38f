package mint

import "errors"

// Sentinel kinds for mint gateway errors.
var (
	ErrMintDisabled   = errors.New("minting disabled")
	ErrMintRejected   = errors.New("mint rejected by engine")
	ErrInvalidAddress = errors.New("invalid address")
	ErrEmptyTxID      = errors.New("engine returned no transaction id")
)
