package kv

import (
	"context"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbm.NewMemDB())
}

func TestAddPathAndGetPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := ibctypes.RelayPath{
		ID: "path-1", ChainIDA: "chain-a", RPCA: "http://a", ChainIDB: "chain-b", RPCB: "http://b",
		ChainTypeA: ibctypes.ClientKindTendermint, ChainTypeB: ibctypes.ClientKindTendermint,
		ClientA: "07-tendermint-0", ClientB: "07-tendermint-1", Version: ibctypes.IBCVersionChannels,
	}
	if err := s.AddPath(ctx, path); err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	got, err := s.GetPath(ctx, "path-1")
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if got == nil || got.ChainIDA != "chain-a" {
		t.Fatalf("GetPath = %+v, want path-1", got)
	}

	list, err := s.ListPaths(ctx)
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListPaths returned %d paths, want 1", len(list))
	}
}

func TestAddPathRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	err := s.AddPath(context.Background(), ibctypes.RelayPath{ID: ""})
	if err == nil {
		t.Fatal("AddPath with empty id: want error, got nil")
	}
}

func TestGetPathMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetPath(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("GetPath(missing) = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestLoadHeightsMissingReturnsZero(t *testing.T) {
	s := newTestStore(t)
	h, err := s.LoadHeights(context.Background(), "path-1")
	if err != nil {
		t.Fatalf("LoadHeights: %v", err)
	}
	if !h.PacketHeightA.IsZero() || !h.PacketHeightB.IsZero() {
		t.Fatalf("LoadHeights missing row = %+v, want all-zero", h)
	}
}

func TestSaveAndLoadHeightsRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := ibctypes.RelayedHeights{
		RelayPathID:   "path-1",
		PacketHeightA: ibctypes.NewHeight(0, 10),
		PacketHeightB: ibctypes.NewHeight(0, 20),
		AckHeightA:    ibctypes.NewHeight(0, 9),
		AckHeightB:    ibctypes.NewHeight(0, 19),
	}
	if err := s.SaveHeights(ctx, h); err != nil {
		t.Fatalf("SaveHeights: %v", err)
	}
	got, err := s.LoadHeights(ctx, "path-1")
	if err != nil {
		t.Fatalf("LoadHeights: %v", err)
	}
	if got != h {
		t.Fatalf("LoadHeights = %+v, want %+v", got, h)
	}
}

func TestSetAndGetFee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fee := ibctypes.ChainFee{ChainID: "chain-a", GasPrice: 0.025, GasDenom: "uatom"}
	if err := s.SetFee(ctx, fee); err != nil {
		t.Fatalf("SetFee: %v", err)
	}
	got, err := s.GetFee(ctx, "chain-a")
	if err != nil {
		t.Fatalf("GetFee: %v", err)
	}
	if got == nil || *got != fee {
		t.Fatalf("GetFee = %+v, want %+v", got, fee)
	}
}

func TestGetFeeMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetFee(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("GetFee(missing) = (%+v, %v), want (nil, nil)", got, err)
	}
}
