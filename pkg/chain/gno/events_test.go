package gno

import (
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

func TestEventQueryIncludesScopeAndRange(t *testing.T) {
	q := eventQuery("send_packet", chain.Scope{ConnectionID: "connection-0"}, chain.HeightRange{Min: ibctypes.NewHeight(0, 10)})
	want := "send_packet.packet_sequence EXISTS AND send_packet.packet_connection='connection-0' AND tx.height>=10"
	if q != want {
		t.Errorf("got %q, want %q", q, want)
	}
}

func TestEventQueryAckUsesDestinationClient(t *testing.T) {
	q := eventQuery("write_acknowledgement", chain.Scope{ClientID: "07-tendermint-0"}, chain.HeightRange{})
	want := "write_acknowledgement.packet_sequence EXISTS AND write_acknowledgement.packet_dst_client='07-tendermint-0'"
	if q != want {
		t.Errorf("got %q, want %q", q, want)
	}
}
