package chain

import (
	"testing"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

func TestClientStateRoundTrip(t *testing.T) {
	want := &ibctypes.ClientState{
		ChainID:         "counterparty-1",
		TrustLevel:      ibctypes.DefaultTrustLevel,
		TrustingPeriod:  2 * time.Hour,
		UnbondingPeriod: 3 * time.Hour,
		MaxClockDrift:   10 * time.Second,
		LatestHeight:    ibctypes.NewHeight(1, 100),
	}
	data, err := EncodeClientState(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeClientState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ChainID != want.ChainID || got.LatestHeight != want.LatestHeight {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestConsensusStateRoundTrip(t *testing.T) {
	want := &ibctypes.ConsensusState{
		Timestamp:          time.Unix(1700000000, 0).UTC(),
		Root:               ibctypes.MerkleRoot{Hash: []byte{0xAB, 0xCD}},
		NextValidatorsHash: []byte{0x01},
	}
	data, err := EncodeConsensusState(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeConsensusState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, want.Timestamp)
	}
}

func TestDecodeSequenceEmptyIsZero(t *testing.T) {
	n, err := DecodeSequence(nil)
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil, got %d, %v", n, err)
	}
}

func TestDecodeChannelOrderRejectsUnknown(t *testing.T) {
	if _, err := DecodeChannelOrder([]byte(`{"ordering":"ORDER_BOGUS"}`)); err == nil {
		t.Fatalf("expected error for unknown ordering")
	}
}

func TestDecodeChannelOrderAcceptsKnown(t *testing.T) {
	order, err := DecodeChannelOrder([]byte(`{"ordering":"ORDER_UNORDERED"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order != ibctypes.OrderUnordered {
		t.Errorf("got %v, want ORDER_UNORDERED", order)
	}
}
