package ibctypes

import (
	"fmt"
	"time"
)

// TrustLevel is a fraction numerator/denominator of the validator set that
// must sign a header for it to be trusted.
type TrustLevel struct {
	Numerator   uint64
	Denominator uint64
}

// DefaultTrustLevel is the 1/3 fraction used for newly created clients.
var DefaultTrustLevel = TrustLevel{Numerator: 1, Denominator: 3}

// ClientState is the Tendermint light-client state tracked on one chain
// for its counterparty. The invariant TrustingPeriod < UnbondingPeriod is
// enforced by NewClientState.
type ClientState struct {
	ChainID         string
	TrustLevel      TrustLevel
	TrustingPeriod  time.Duration
	UnbondingPeriod time.Duration
	MaxClockDrift   time.Duration
	LatestHeight    Height
	FrozenHeight    Height // zero means not frozen
	UpgradePath     []string
	AllowUpdateAfterExpiry    bool
	AllowUpdateAfterMisbehaviour bool
}

// NewClientState builds a ClientState with TrustingPeriod defaulted to 2/3
// of UnbondingPeriod when trustingPeriod is zero.
func NewClientState(chainID string, unbondingPeriod time.Duration, trustingPeriod time.Duration, latestHeight Height) (*ClientState, error) {
	if trustingPeriod == 0 {
		trustingPeriod = unbondingPeriod * 2 / 3
	}
	if trustingPeriod >= unbondingPeriod {
		return nil, fmt.Errorf("ibctypes: trustingPeriod (%s) must be < unbondingPeriod (%s)", trustingPeriod, unbondingPeriod)
	}
	return &ClientState{
		ChainID:         chainID,
		TrustLevel:      DefaultTrustLevel,
		TrustingPeriod:  trustingPeriod,
		UnbondingPeriod: unbondingPeriod,
		MaxClockDrift:   10 * time.Second,
		LatestHeight:    latestHeight,
	}, nil
}

// IsFrozen reports whether the client has been frozen by evidence of
// misbehaviour.
func (c *ClientState) IsFrozen() bool {
	return !c.FrozenHeight.IsZero()
}

// ConsensusState is one height's worth of consensus data the client has
// been updated to; Root.Hash is the app hash used to verify proofs rooted
// at that height.
type ConsensusState struct {
	Timestamp          time.Time
	Root               MerkleRoot
	NextValidatorsHash []byte
}

// MerkleRoot wraps the app hash committing a chain's state tree.
type MerkleRoot struct {
	Hash []byte
}
