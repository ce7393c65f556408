package proof

import (
	"context"
	"fmt"

	ics23 "github.com/cosmos/ics23/go"
	tmcrypto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	"github.com/cosmos/gogoproto/proto"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// Bundle is the proof artifact handed to a message builder: the raw value
// at the key, the ICS-23 commitment proofs decoded from its ProofOps, and
// the height it was proven at.
type Bundle struct {
	Data        []byte
	Proof       []*ics23.CommitmentProof
	ProofHeight ibctypes.Height
}

// Prover is the capability a Chain Client exposes to the Proof Assembler:
// an ABCI-style query-with-proof against the chain's committed state tree
// at a specific height. Implementations return the raw ProofOps exactly as
// CometBFT's ABCIQueryWithOptions does, which the Assembler then decodes
// into the ICS-23 op chain.
type Prover interface {
	QueryWithProof(ctx context.Context, storeKey string, key []byte, height int64) (value []byte, proofOps *tmcrypto.ProofOps, err error)
}

// Assembler builds proof bundles for the relay engine's message constructors.
type Assembler struct {
	prover  Prover
	storeKey string // e.g. "ibc"
}

// NewAssembler constructs an Assembler against the given Prover. storeKey is
// the IAVL substore the IBC module state lives under (conventionally
// "ibc").
func NewAssembler(prover Prover, storeKey string) *Assembler {
	return &Assembler{prover: prover, storeKey: storeKey}
}

// queryHeightFor derives the query height from the desired proof height:
// all proofs are queried at proofHeight-1, because the app hash committing
// block H is included in block H+1's header.
func queryHeightFor(proofHeight ibctypes.Height) int64 {
	if proofHeight.RevisionHeight == 0 {
		return 0
	}
	return int64(proofHeight.RevisionHeight - 1)
}

// Assemble fetches the value and proof for one key at proofHeight,
// decoding CometBFT's ProofOps into the ICS-23 two-op chain (iavl leaf +
// simple store root).
func (a *Assembler) Assemble(ctx context.Context, key []byte, proofHeight ibctypes.Height) (*Bundle, error) {
	value, proofOps, err := a.prover.QueryWithProof(ctx, a.storeKey, key, queryHeightFor(proofHeight))
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	if proofOps == nil || len(proofOps.Ops) == 0 {
		return nil, relayerr.ProtocolError("no proof ops returned for key %x at height %s", key, proofHeight)
	}

	commitProofs := make([]*ics23.CommitmentProof, 0, len(proofOps.Ops))
	for _, op := range proofOps.Ops {
		cp := &ics23.CommitmentProof{}
		if err := proto.Unmarshal(op.Data, cp); err != nil {
			return nil, relayerr.ProtocolError("decoding proof op %q: %v", op.Type, err)
		}
		commitProofs = append(commitProofs, cp)
	}

	return &Bundle{Data: value, Proof: commitProofs, ProofHeight: proofHeight}, nil
}

// ConnectionBundle is the composite proof for a connection handshake
// message: client-state proof ∥ connection proof ∥ consensus-state proof,
// all queried at the same height.
type ConnectionBundle struct {
	ClientState    *Bundle
	Connection     *Bundle
	ConsensusState *Bundle
}

// AssembleConnectionHandshake builds a ConnectionBundle.
func (a *Assembler) AssembleConnectionHandshake(ctx context.Context, clientID, connectionID string, consensusHeight, proofHeight ibctypes.Height) (*ConnectionBundle, error) {
	clientKey, err := KeyV1(KeyClientState, "", "", 0, clientID, "", 0, 0)
	if err != nil {
		return nil, err
	}
	connKey, err := KeyV1(KeyConnection, "", "", 0, "", connectionID, 0, 0)
	if err != nil {
		return nil, err
	}
	csKey, err := KeyV1(KeyConsensusState, "", "", 0, clientID, "", consensusHeight.RevisionNumber, consensusHeight.RevisionHeight)
	if err != nil {
		return nil, err
	}

	csBundle, err := a.Assemble(ctx, clientKey, proofHeight)
	if err != nil {
		return nil, fmt.Errorf("client state proof: %w", err)
	}
	connBundle, err := a.Assemble(ctx, connKey, proofHeight)
	if err != nil {
		return nil, fmt.Errorf("connection proof: %w", err)
	}
	consBundle, err := a.Assemble(ctx, csKey, proofHeight)
	if err != nil {
		return nil, fmt.Errorf("consensus state proof: %w", err)
	}

	return &ConnectionBundle{ClientState: csBundle, Connection: connBundle, ConsensusState: consBundle}, nil
}

// AssembleChannelHandshake builds the channel-handshake proof: the
// channel-end proof alone.
func (a *Assembler) AssembleChannelHandshake(ctx context.Context, port, channel string, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV1(KeyChannelEnd, port, channel, 0, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

// AssemblePacketCommitmentV1 builds the packet-relay proof for a v1
// packet: the packet commitment.
func (a *Assembler) AssemblePacketCommitmentV1(ctx context.Context, port, channel string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV1(KeyPacketCommitment, port, channel, sequence, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

// AssembleAckV1 builds the ack-relay proof: the packet ack.
func (a *Assembler) AssembleAckV1(ctx context.Context, port, channel string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV1(KeyPacketAck, port, channel, sequence, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

// AssembleTimeoutV1 builds the timeout proof: the receipt key, proving its
// absence for a never-received packet, or presence if the application
// wrote one and the caller wants to confirm that before timing out.
func (a *Assembler) AssembleTimeoutV1(ctx context.Context, port, channel string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV1(KeyPacketReceipt, port, channel, sequence, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

// AssemblePacketCommitmentV2, AssembleAckV2, AssembleTimeoutV2 are the v2
// (client-to-client) equivalents, keyed by clientID instead of port/channel.
func (a *Assembler) AssemblePacketCommitmentV2(ctx context.Context, clientID string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV2(KeyPacketCommitment, clientID, sequence, 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

func (a *Assembler) AssembleAckV2(ctx context.Context, clientID string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV2(KeyPacketAck, clientID, sequence, 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

func (a *Assembler) AssembleTimeoutV2(ctx context.Context, clientID string, sequence uint64, proofHeight ibctypes.Height) (*Bundle, error) {
	key, err := KeyV2(KeyPacketReceipt, clientID, sequence, 0, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(ctx, key, proofHeight)
}

// VerifySpec selects the ICS-23 proof spec used for the leaf op (iavl).
var VerifySpec = ics23.IavlSpec

// VerifyMembership checks (key, value) against root using only the first
// proof in bundle, the IAVL leaf proof, under VerifySpec. That proof
// resolves to the IBC substore root, not the app hash; the remaining
// multistore proofs in the bundle are not verified, so passing the
// consensus-state app hash as root does not chain through them.
func VerifyMembership(root []byte, bundle *Bundle, key, value []byte) bool {
	if len(bundle.Proof) == 0 {
		return false
	}
	return ics23.VerifyMembership(VerifySpec, root, bundle.Proof[0], key, value)
}
