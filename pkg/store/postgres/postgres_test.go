package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

// testDB is opened against RELAYER_TEST_DATABASE_URL; tests skip entirely
// when it's unset, the same opt-in pattern the teacher uses for its own
// Postgres repository tests.
var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("RELAYER_TEST_DATABASE_URL")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), os.Getenv("RELAYER_TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPath(id string) ibctypes.RelayPath {
	return ibctypes.RelayPath{
		ID: id, ChainIDA: "chain-a", RPCA: "http://a", ChainIDB: "chain-b", RPCB: "http://b",
		ChainTypeA: ibctypes.ClientKindTendermint, ChainTypeB: ibctypes.ClientKindTendermint,
		ClientA: "07-tendermint-0", ClientB: "07-tendermint-1", Version: ibctypes.IBCVersionChannels,
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	s := newTestStore(t)
	var exists bool
	err := s.db.QueryRowContext(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'relay_paths')`).Scan(&exists)
	if err != nil {
		t.Fatalf("check relay_paths table: %v", err)
	}
	if !exists {
		t.Fatal("Open did not apply the embedded migration")
	}
}

func TestAddPathAndGetPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := testPath("pg-path-1")
	t.Cleanup(func() { s.db.ExecContext(ctx, `DELETE FROM relay_paths WHERE id = $1`, path.ID) })

	if err := s.AddPath(ctx, path); err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	got, err := s.GetPath(ctx, path.ID)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if got == nil || got.ChainIDA != "chain-a" {
		t.Fatalf("GetPath = %+v, want chain-a", got)
	}

	missing, err := s.GetPath(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("GetPath missing: %v", err)
	}
	if missing != nil {
		t.Fatal("GetPath for an unknown id should return nil, nil")
	}
}

func TestSaveAndLoadHeightsRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := testPath("pg-path-2")
	t.Cleanup(func() {
		s.db.ExecContext(ctx, `DELETE FROM relayed_heights WHERE relay_path_id = $1`, path.ID)
		s.db.ExecContext(ctx, `DELETE FROM relay_paths WHERE id = $1`, path.ID)
	})
	if err := s.AddPath(ctx, path); err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	zero, err := s.LoadHeights(ctx, path.ID)
	if err != nil {
		t.Fatalf("LoadHeights (unset): %v", err)
	}
	if zero.PacketHeightA != (ibctypes.Height{}) {
		t.Fatalf("LoadHeights (unset) = %+v, want zero value", zero)
	}

	want := ibctypes.RelayedHeights{
		RelayPathID:   path.ID,
		PacketHeightA: ibctypes.NewHeight(0, 10),
		PacketHeightB: ibctypes.NewHeight(0, 20),
		AckHeightA:    ibctypes.NewHeight(0, 5),
		AckHeightB:    ibctypes.NewHeight(0, 6),
	}
	if err := s.SaveHeights(ctx, want); err != nil {
		t.Fatalf("SaveHeights: %v", err)
	}
	got, err := s.LoadHeights(ctx, path.ID)
	if err != nil {
		t.Fatalf("LoadHeights: %v", err)
	}
	if got != want {
		t.Fatalf("LoadHeights = %+v, want %+v", got, want)
	}
}

func TestSetAndGetFee(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t.Cleanup(func() { s.db.ExecContext(ctx, `DELETE FROM chain_fees WHERE chain_id = $1`, "pg-chain-a") })

	fee := ibctypes.ChainFee{ChainID: "pg-chain-a", GasPrice: 0.025, GasDenom: "uatom"}
	if err := s.SetFee(ctx, fee); err != nil {
		t.Fatalf("SetFee: %v", err)
	}
	got, err := s.GetFee(ctx, fee.ChainID)
	if err != nil {
		t.Fatalf("GetFee: %v", err)
	}
	if got == nil || *got != fee {
		t.Fatalf("GetFee = %+v, want %+v", got, fee)
	}
}
