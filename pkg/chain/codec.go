package chain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// wireClientState and wireConsensusState are the JSON envelope every
// driver reads and writes for client/consensus state values. The
// counterparty's real on-chain encoding is an ICS-02 protobuf Any, whose
// concrete message definitions are out of scope here; every driver in
// this repository only ever talks to a counterparty running the same
// relayer-maintained client, so a stable JSON envelope is sufficient and
// avoids depending on ibc-go's or gno's generated types.
type wireClientState struct {
	ChainID                      string        `json:"chain_id"`
	TrustLevelNumerator          uint64        `json:"trust_level_numerator"`
	TrustLevelDenominator        uint64        `json:"trust_level_denominator"`
	TrustingPeriod               time.Duration `json:"trusting_period"`
	UnbondingPeriod              time.Duration `json:"unbonding_period"`
	MaxClockDrift                time.Duration `json:"max_clock_drift"`
	LatestHeightRevision         uint64        `json:"latest_height_revision"`
	LatestHeightHeight           uint64        `json:"latest_height_height"`
	FrozenHeightRevision         uint64        `json:"frozen_height_revision"`
	FrozenHeightHeight           uint64        `json:"frozen_height_height"`
	UpgradePath                  []string      `json:"upgrade_path"`
	AllowUpdateAfterExpiry       bool          `json:"allow_update_after_expiry"`
	AllowUpdateAfterMisbehaviour bool          `json:"allow_update_after_misbehaviour"`
}

type wireConsensusState struct {
	TimestampUnixNano  int64  `json:"timestamp_unix_nano"`
	RootHash           []byte `json:"root_hash"`
	NextValidatorsHash []byte `json:"next_validators_hash"`
}

// EncodeClientState is the wire form a CreateClient transaction writes.
func EncodeClientState(cs *ibctypes.ClientState) ([]byte, error) {
	w := wireClientState{
		ChainID:                      cs.ChainID,
		TrustLevelNumerator:          cs.TrustLevel.Numerator,
		TrustLevelDenominator:        cs.TrustLevel.Denominator,
		TrustingPeriod:               cs.TrustingPeriod,
		UnbondingPeriod:              cs.UnbondingPeriod,
		MaxClockDrift:                cs.MaxClockDrift,
		LatestHeightRevision:         cs.LatestHeight.RevisionNumber,
		LatestHeightHeight:           cs.LatestHeight.RevisionHeight,
		FrozenHeightRevision:         cs.FrozenHeight.RevisionNumber,
		FrozenHeightHeight:           cs.FrozenHeight.RevisionHeight,
		UpgradePath:                  cs.UpgradePath,
		AllowUpdateAfterExpiry:       cs.AllowUpdateAfterExpiry,
		AllowUpdateAfterMisbehaviour: cs.AllowUpdateAfterMisbehaviour,
	}
	return json.Marshal(w)
}

// DecodeClientState is EncodeClientState's inverse, used by every driver's
// ClientState query.
func DecodeClientState(data []byte) (*ibctypes.ClientState, error) {
	var w wireClientState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, relayerr.ProtocolError("chain: decode client state: %v", err)
	}
	return &ibctypes.ClientState{
		ChainID:                      w.ChainID,
		TrustLevel:                   ibctypes.TrustLevel{Numerator: w.TrustLevelNumerator, Denominator: w.TrustLevelDenominator},
		TrustingPeriod:               w.TrustingPeriod,
		UnbondingPeriod:              w.UnbondingPeriod,
		MaxClockDrift:                w.MaxClockDrift,
		LatestHeight:                 ibctypes.NewHeight(w.LatestHeightRevision, w.LatestHeightHeight),
		FrozenHeight:                 ibctypes.NewHeight(w.FrozenHeightRevision, w.FrozenHeightHeight),
		UpgradePath:                  w.UpgradePath,
		AllowUpdateAfterExpiry:       w.AllowUpdateAfterExpiry,
		AllowUpdateAfterMisbehaviour: w.AllowUpdateAfterMisbehaviour,
	}, nil
}

// EncodeConsensusState is the wire form an UpdateClient transaction writes.
func EncodeConsensusState(cs *ibctypes.ConsensusState) ([]byte, error) {
	w := wireConsensusState{TimestampUnixNano: cs.Timestamp.UnixNano(), RootHash: cs.Root.Hash, NextValidatorsHash: cs.NextValidatorsHash}
	return json.Marshal(w)
}

// DecodeConsensusState is EncodeConsensusState's inverse.
func DecodeConsensusState(data []byte) (*ibctypes.ConsensusState, error) {
	var w wireConsensusState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, relayerr.ProtocolError("chain: decode consensus state: %v", err)
	}
	return &ibctypes.ConsensusState{
		Timestamp:          time.Unix(0, w.TimestampUnixNano).UTC(),
		Root:               ibctypes.MerkleRoot{Hash: w.RootHash},
		NextValidatorsHash: w.NextValidatorsHash,
	}, nil
}

// DecodeSequence parses the plain decimal bytes the store keeps for
// nextSequenceRecv. An empty value decodes as 0 (channel never received).
func DecodeSequence(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, relayerr.ProtocolError("chain: decode sequence %q: %v", data, err)
	}
	return n, nil
}

// DecodeChannelOrder parses a channel end's ordering field.
func DecodeChannelOrder(data []byte) (ibctypes.ChannelOrder, error) {
	if len(data) == 0 {
		return "", relayerr.ProtocolError("chain: channel end not found")
	}
	var envelope struct {
		Ordering string `json:"ordering"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", relayerr.ProtocolError("chain: decode channel end: %v", err)
	}
	switch ibctypes.ChannelOrder(envelope.Ordering) {
	case ibctypes.OrderOrdered:
		return ibctypes.OrderOrdered, nil
	case ibctypes.OrderUnordered:
		return ibctypes.OrderUnordered, nil
	default:
		return "", relayerr.ProtocolError("chain: unknown channel ordering %q", envelope.Ordering)
	}
}
