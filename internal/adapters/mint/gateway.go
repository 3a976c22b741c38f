// Package mint talks to the external NFT mint gateway. Minting is best
// effort: callers treat every error as "no transaction".
package mint

import (
	"context"
	"time"
)

// Kind tells which NFT a request mints.
type Kind uint8

const (
	KindEcoPoints Kind = iota
	KindBadge
)

func (k Kind) String() string {
	if k == KindBadge {
		return "badge"
	}
	return "ecopoints"
}

// Contract call signatures understood by the engine.
const (
	MethodMintTo    = "function mintTo(address to, uint256 amount)"
	MethodMintBadge = "function mintBadge(address to, string memory badgeId)"
)

// Request is one contract call.
type Request struct {
	Kind            Kind
	ChainID         int64
	ContractAddress string
	Method          string
	Params          []any
}

// Gateway submits a mint and returns the transaction id.
type Gateway interface {
	Mint(ctx context.Context, req Request) (string, error)
}

// Job is a queued mint. Reply must have room for the outcome; workers never
// block on it.
type Job struct {
	ID       string
	Index    int
	Request  Request
	Deadline time.Time
	Reply    chan<- Outcome
}

// Outcome is the result of a Job.
type Outcome struct {
	JobID string
	Index int
	Kind  Kind
	TxID  string
	Err   error
}

// NopGateway is used when no engine is configured.
type NopGateway struct{}

// Mint always fails with ErrMintDisabled.
func (NopGateway) Mint(context.Context, Request) (string, error) {
	return "", ErrMintDisabled
}
