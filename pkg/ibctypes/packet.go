package ibctypes

// ChannelOrder is the ordering semantics of a v1 channel.
type ChannelOrder string

const (
	OrderUnordered ChannelOrder = "ORDER_UNORDERED"
	OrderOrdered   ChannelOrder = "ORDER_ORDERED"
)

// PacketV1 is the classic channel-addressed IBC packet. It is
// uniquely identified on its source by (SourcePort, SourceChannel,
// Sequence); sequence numbers increase monotonically within a channel, and
// on an ORDERED channel the destination consumes strictly in order.
type PacketV1 struct {
	Sequence           uint64
	SourcePort         string
	SourceChannel      string
	DestinationPort    string
	DestinationChannel string
	Data               []byte
	TimeoutHeight      Height
	TimeoutTimestamp   uint64 // unix nanoseconds, 0 = unset
}

// PacketV2 is the client-to-client addressed packet introduced by v2; it
// carries no channel/port identity of its own, only per-payload metadata.
type PacketV2 struct {
	Sequence         uint64
	SourceClient     string
	DestinationClient string
	Payloads         []Payload
	TimeoutTimestamp uint64
}

// Payload is one application-level unit carried by a v2 packet.
type Payload struct {
	SourcePort      string
	DestinationPort string
	Encoding        string
	Value           []byte
	Version         string
}

// AcknowledgementV1 pairs the original packet with the opaque ack bytes
// emitted by the destination's application.
type AcknowledgementV1 struct {
	OriginalPacket  PacketV1
	Acknowledgement []byte
}

// AcknowledgementV2 pairs the original packet with a structured per-payload
// ack result. The payload result bytes are carried opaquely end-to-end and
// never decoded by the relayer core.
type AcknowledgementV2 struct {
	OriginalPacket  PacketV2
	AppAcknowledgements [][]byte
}

// PacketIdentityV1 is the (port, channel, sequence) triple used to key v1
// packets for dedup and channel-ordering lookups.
type PacketIdentityV1 struct {
	Port     string
	Channel  string
	Sequence uint64
}

// ChannelKey groups a v1 packet batch by destination (port, channel) for
// ordering lookups deduplicated across the batch.
type ChannelKey struct {
	Port    string
	Channel string
}
