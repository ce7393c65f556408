package supervisor

import (
	"context"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/relaycore/ibc-relayer/pkg/config"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/store/kv"
)

func testSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	cfg := &config.Config{PollInterval: 50 * time.Millisecond}
	st := kv.New(dbm.NewMemDB())
	return New(cfg, st, t.TempDir())
}

func validPath(id string) ibctypes.RelayPath {
	return ibctypes.RelayPath{
		ID:         id,
		ChainIDA:   "chain-a",
		RPCA:       "http://localhost:26657",
		ChainIDB:   "chain-b",
		RPCB:       "http://localhost:26658",
		ChainTypeA: ibctypes.ClientKindTendermint,
		ChainTypeB: ibctypes.ClientKindTendermint,
		ClientA:    "07-tendermint-0",
		ClientB:    "07-tendermint-1",
		Version:    ibctypes.IBCVersionChannels,
	}
}

func TestAddPathPersistsValidPath(t *testing.T) {
	s := testSupervisor(t)
	ctx := context.Background()

	if err := s.AddPath(ctx, validPath("path-1")); err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	paths, err := s.store.ListPaths(ctx)
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(paths) != 1 || paths[0].ID != "path-1" {
		t.Fatalf("ListPaths = %+v, want one path-1", paths)
	}
}

func TestAddPathRejectsInvalidPath(t *testing.T) {
	s := testSupervisor(t)
	bad := validPath("path-1")
	bad.ChainTypeA = "unknown"

	if err := s.AddPath(context.Background(), bad); err == nil {
		t.Fatal("AddPath with unknown chain type: want error, got nil")
	}
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	s := testSupervisor(t)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop on unstarted supervisor: %v", err)
	}
}

func TestInitSkipsAlreadyInstantiatedPath(t *testing.T) {
	s := testSupervisor(t)
	s.links["path-1"] = &liveLink{pathID: "path-1"}

	if err := s.AddPath(context.Background(), validPath("path-1")); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Init must not have replaced the already-registered (zero-value)
	// liveLink with a freshly built one.
	if s.links["path-1"].link != nil {
		t.Fatal("Init rebuilt an already-instantiated path")
	}
}
