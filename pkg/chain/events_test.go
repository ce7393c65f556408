package chain

import "testing"

func TestParseSentPacketAttributes(t *testing.T) {
	attrs := AttrMap([]EventAttr{
		{Key: "packet_sequence", Value: "7"},
		{Key: "packet_src_port", Value: "transfer"},
		{Key: "packet_src_channel", Value: "channel-0"},
		{Key: "packet_dst_port", Value: "transfer"},
		{Key: "packet_dst_channel", Value: "channel-1"},
		{Key: "packet_timeout_height", Value: "0-0"},
		{Key: "packet_data", Value: "hello"},
	})
	packet, err := ParseSentPacketAttributes(attrs)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if packet.Sequence != 7 || packet.SourceChannel != "channel-0" || string(packet.Data) != "hello" {
		t.Errorf("unexpected packet: %+v", packet)
	}
}

func TestParseSentPacketAttributesMissingSequence(t *testing.T) {
	if _, err := ParseSentPacketAttributes(AttrMap(nil)); err == nil {
		t.Fatalf("expected error for missing packet_sequence")
	}
}

func TestParseWrittenAckAttributes(t *testing.T) {
	attrs := AttrMap([]EventAttr{
		{Key: "packet_sequence", Value: "3"},
		{Key: "packet_src_port", Value: "transfer"},
		{Key: "packet_src_channel", Value: "channel-0"},
		{Key: "packet_dst_port", Value: "transfer"},
		{Key: "packet_dst_channel", Value: "channel-1"},
		{Key: "packet_ack", Value: "result"},
	})
	ack, err := ParseWrittenAckAttributes(attrs)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ack.OriginalPacket.Sequence != 3 || string(ack.Acknowledgement) != "result" {
		t.Errorf("unexpected ack: %+v", ack)
	}
}
