package chain

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// EventAttr is one key/value pair from a chain event, independent of the
// concrete event encoding (ABCI Event for Tendermint, the "attrs" array
// shape for Gno) each driver receives it in.
type EventAttr struct {
	Key   string
	Value string
}

// AttrMap flattens an event's attribute list into a lookup keyed by name,
// mirroring how each chain indexes them for query matching.
func AttrMap(attrs []EventAttr) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value
	}
	return out
}

// ParseSentPacketAttributes builds a PacketV1 from a send_packet event's
// attributes, shared by every driver since the IBC event schema is
// identical across chain kinds.
func ParseSentPacketAttributes(attrs map[string]string) (*ibctypes.PacketV1, error) {
	seq, err := strconv.ParseUint(attrs["packet_sequence"], 10, 64)
	if err != nil {
		return nil, relayerr.ProtocolError("chain: send_packet missing/invalid packet_sequence: %v", err)
	}
	timeoutHeight, err := ibctypes.ParseHeight(attrs["packet_timeout_height"])
	if err != nil {
		return nil, relayerr.ProtocolError("chain: send_packet invalid packet_timeout_height: %v", err)
	}
	timeoutTimestamp, _ := strconv.ParseUint(attrs["packet_timeout_timestamp"], 10, 64)
	data, err := decodeEventBinary(attrs["packet_data"], attrs["packet_data_hex"])
	if err != nil {
		return nil, err
	}
	return &ibctypes.PacketV1{
		Sequence:           seq,
		SourcePort:         attrs["packet_src_port"],
		SourceChannel:      attrs["packet_src_channel"],
		DestinationPort:    attrs["packet_dst_port"],
		DestinationChannel: attrs["packet_dst_channel"],
		Data:               data,
		TimeoutHeight:      timeoutHeight,
		TimeoutTimestamp:   timeoutTimestamp,
	}, nil
}

// ParseWrittenAckAttributes builds an AcknowledgementV1 from a
// write_acknowledgement event's attributes.
func ParseWrittenAckAttributes(attrs map[string]string) (*ibctypes.AcknowledgementV1, error) {
	packet, err := ParseSentPacketAttributes(attrs)
	if err != nil {
		return nil, err
	}
	ack, err := decodeEventBinary(attrs["packet_ack"], attrs["packet_ack_hex"])
	if err != nil {
		return nil, err
	}
	return &ibctypes.AcknowledgementV1{OriginalPacket: *packet, Acknowledgement: ack}, nil
}

// decodeEventBinary prefers the base64-encoded attribute chains emit
// alongside the human-readable one, since the plain attribute is not
// guaranteed to round-trip arbitrary binary payloads.
func decodeEventBinary(plain, base64Encoded string) ([]byte, error) {
	if base64Encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(base64Encoded))
		if err != nil {
			return nil, relayerr.ProtocolError("chain: decode event binary attribute: %v", err)
		}
		return decoded, nil
	}
	return []byte(plain), nil
}
