// Package chain defines the uniform capability set every Chain Client
// variant exposes to the rest of the relayer core, and the shared helpers
// (batch-length validation, identifier sanitisation, timeout-packet
// sequence override) used by every variant. Concrete drivers live in
// pkg/chain/tendermint and pkg/chain/gno.
//
// Grounded on the teacher's duck-typed client dispatch in
// pkg/consensus/bft_integration.go (RealCometBFTEngine) and
// pkg/chain/strategy/interface.go's per-chain-kind capability split,
// generalized from "anchor submission strategy" into "IBC chain capability".
package chain

import (
	"context"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// Kind tags which concrete variant a Client is, mirroring the source's
// isTendermint(client) duck-typed dispatch as an explicit capability tag.
type Kind = ibctypes.ClientKind

const (
	KindTendermint = ibctypes.ClientKindTendermint
	KindGno        = ibctypes.ClientKindGno
)

// Scope selects the addressing domain for event-log queries: a
// connection-id under IBC v1, or a client-id under v2.
type Scope struct {
	ConnectionID string
	ClientID     string
}

// HeightRange bounds an event-log query; Max zero means unbounded.
type HeightRange struct {
	Min ibctypes.Height
	Max ibctypes.Height
}

// SentPacketEvent is one send_packet (v1) or equivalent v2 event observed
// on a chain.
type SentPacketEvent struct {
	Height ibctypes.Height
	V1     *ibctypes.PacketV1
	V2     *ibctypes.PacketV2
}

// WrittenAckEvent is one write_acknowledgement event observed on a chain.
type WrittenAckEvent struct {
	Height ibctypes.Height
	V1     *ibctypes.AcknowledgementV1
	V2     *ibctypes.AcknowledgementV2
}

// TxResult reports the outcome of a transactional operation.
type TxResult struct {
	Height int64
	TxHash []byte
	RawLog string
	Events map[string]string
}

// Client is the capability set every chain variant exposes: queries,
// event-log queries, and the transactional operations that submit IBC
// messages.
type Client interface {
	Kind() Kind
	ChainID() string

	// Queries.
	CurrentHeight(ctx context.Context) (ibctypes.Height, error)
	CurrentTime(ctx context.Context) (int64, error) // unix nanoseconds
	UnbondingPeriod(ctx context.Context) (int64, error) // nanoseconds
	ClientState(ctx context.Context, clientID string) (*ibctypes.ClientState, error)
	ConsensusState(ctx context.Context, clientID string, height ibctypes.Height) (*ibctypes.ConsensusState, error)
	NextSequenceRecv(ctx context.Context, port, channel string) (uint64, error)
	PacketCommitment(ctx context.Context, port, channel string, sequence uint64) ([]byte, error)
	UnreceivedPackets(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error)
	UnreceivedAcks(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error)
	ChannelOrdering(ctx context.Context, port, channel string) (ibctypes.ChannelOrder, error)

	// V2 (client-to-client) counterparts, addressed by destination client
	// rather than (port, channel). v2 carries no channel ordering concept.
	PacketCommitmentV2(ctx context.Context, clientID string, sequence uint64) ([]byte, error)
	UnreceivedPacketsV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error)
	UnreceivedAcksV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error)

	// Event-log queries. Implementations must union tx and block events
	// and dedup by sequence + source identity.
	SentPackets(ctx context.Context, scope Scope, r HeightRange) ([]SentPacketEvent, error)
	WrittenAcks(ctx context.Context, scope Scope, r HeightRange) ([]WrittenAckEvent, error)

	// BuildUpdateHeader builds the light-client update header carrying this
	// chain's consensus at targetHeight, trusted-anchored at trustedHeight.
	// Only the Tendermint variant's header is validator-set-driven; Gno
	// uses a different consensus-state shape internally, but every variant
	// exposes this same capability so the Light-Client Manager never
	// branches on kind.
	BuildUpdateHeader(ctx context.Context, trustedHeight, targetHeight ibctypes.Height) (Header, error)

	// Transactional operations.
	CreateClient(ctx context.Context, cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) (clientID string, res *TxResult, err error)
	UpdateClient(ctx context.Context, clientID string, header Header) (*TxResult, error)
	RecvPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) (*TxResult, error)
	AckPackets(ctx context.Context, batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) (*TxResult, error)
	TimeoutPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) (*TxResult, error)

	WaitOneBlock(ctx context.Context) error

	Connect(ctx context.Context) error
	Disconnect() error
}

// Header is the chain-specific light-client update header; variants embed
// whatever shape their consensus needs internally (validator-set for
// Tendermint, a simpler commitment chain for Gno), but every variant
// reports this common surface so the Light-Client Manager can derive a
// ConsensusState and compare headers without branching on chain kind.
type Header interface {
	TrustedHeight() ibctypes.Height
	TargetHeight() ibctypes.Height
	AppHash() []byte
	NextValidatorsHash() []byte
	Timestamp() time.Time
}

// SanitizeIdentifier rejects any identifier that isn't safe to interpolate
// into a query string or source template.
func SanitizeIdentifier(name, value string) error {
	return ibctypes.ValidateIdentifier(name, value)
}

// ValidateBatchLengths enforces the equal-length contract on batch
// submission: all parallel arrays passed to RecvPackets/AckPackets/
// TimeoutPackets must have the same non-zero length.
func ValidateBatchLengths(n int, lens ...int) error {
	if n == 0 {
		return relayerr.InvariantViolation("batch must contain at least one item")
	}
	for _, l := range lens {
		if l != n {
			return relayerr.InvariantViolation("batch arrays have mismatched lengths: want %d, got %d", n, l)
		}
	}
	return nil
}

// OverrideTimeoutNextSequenceRecv implements the v1 timeout quirk: on an
// UNORDERED channel, the nextSequenceRecv argument submitted with a
// timeout MUST be the packet's own sequence, not the caller-supplied
// value.
func OverrideTimeoutNextSequenceRecv(order ibctypes.ChannelOrder, packet ibctypes.PacketV1, callerSupplied uint64) uint64 {
	if order == ibctypes.OrderUnordered {
		return packet.Sequence
	}
	return callerSupplied
}
