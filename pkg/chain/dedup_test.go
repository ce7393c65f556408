package chain

import (
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

func TestDedupSentPacketsUnionsAndDedupes(t *testing.T) {
	e1 := SentPacketEvent{V1: &ibctypes.PacketV1{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 1}}
	e1dup := SentPacketEvent{V1: &ibctypes.PacketV1{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 1}}
	e2 := SentPacketEvent{V1: &ibctypes.PacketV1{SourcePort: "transfer", SourceChannel: "channel-0", Sequence: 2}}

	got := DedupSentPackets([]SentPacketEvent{e1, e2}, []SentPacketEvent{e1dup})
	if len(got) != 2 {
		t.Fatalf("expected 2 deduped events, got %d", len(got))
	}
}

func TestDedupWrittenAcksV2(t *testing.T) {
	a1 := WrittenAckEvent{V2: &ibctypes.AcknowledgementV2{OriginalPacket: ibctypes.PacketV2{DestinationClient: "07-tendermint-0", Sequence: 5}}}
	a1dup := WrittenAckEvent{V2: &ibctypes.AcknowledgementV2{OriginalPacket: ibctypes.PacketV2{DestinationClient: "07-tendermint-0", Sequence: 5}}}

	got := DedupWrittenAcks([]WrittenAckEvent{a1}, []WrittenAckEvent{a1dup})
	if len(got) != 1 {
		t.Fatalf("expected 1 deduped event, got %d", len(got))
	}
}
