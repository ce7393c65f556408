package proof

import (
	"context"
	"errors"
	"testing"

	ics23 "github.com/cosmos/ics23/go"
	tmcrypto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	"github.com/cosmos/gogoproto/proto"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

type fakeProver struct {
	value    []byte
	proofOps *tmcrypto.ProofOps
	err      error

	gotStoreKey string
	gotKey      []byte
	gotHeight   int64
}

func (f *fakeProver) QueryWithProof(ctx context.Context, storeKey string, key []byte, height int64) ([]byte, *tmcrypto.ProofOps, error) {
	f.gotStoreKey = storeKey
	f.gotKey = key
	f.gotHeight = height
	return f.value, f.proofOps, f.err
}

func encodedProofOps(t *testing.T) *tmcrypto.ProofOps {
	t.Helper()
	cp := &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Exist{
			Exist: &ics23.ExistenceProof{Key: []byte("k"), Value: []byte("v")},
		},
	}
	data, err := proto.Marshal(cp)
	if err != nil {
		t.Fatalf("marshal commitment proof: %v", err)
	}
	return &tmcrypto.ProofOps{Ops: []tmcrypto.ProofOp{{Type: "ics23:iavl", Key: []byte("k"), Data: data}}}
}

func TestAssembleQueriesAtHeightMinusOne(t *testing.T) {
	prover := &fakeProver{value: []byte("v"), proofOps: encodedProofOps(t)}
	a := NewAssembler(prover, "ibc")

	bundle, err := a.Assemble(context.Background(), []byte("some-key"), ibctypes.NewHeight(0, 101))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if prover.gotHeight != 100 {
		t.Errorf("expected query height 100 (proofHeight-1), got %d", prover.gotHeight)
	}
	if prover.gotStoreKey != "ibc" {
		t.Errorf("expected store key %q, got %q", "ibc", prover.gotStoreKey)
	}
	if len(bundle.Proof) != 1 {
		t.Fatalf("expected one decoded commitment proof, got %d", len(bundle.Proof))
	}
	if bundle.ProofHeight != ibctypes.NewHeight(0, 101) {
		t.Errorf("unexpected proof height: %s", bundle.ProofHeight)
	}
}

func TestAssembleNetworkErrorWraps(t *testing.T) {
	prover := &fakeProver{err: errors.New("connection refused")}
	a := NewAssembler(prover, "ibc")

	_, err := a.Assemble(context.Background(), []byte("k"), ibctypes.NewHeight(0, 5))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestAssembleNoProofOpsIsProtocolError(t *testing.T) {
	prover := &fakeProver{value: []byte("v"), proofOps: &tmcrypto.ProofOps{}}
	a := NewAssembler(prover, "ibc")

	_, err := a.Assemble(context.Background(), []byte("k"), ibctypes.NewHeight(0, 5))
	if err == nil {
		t.Fatalf("expected error for empty proof ops")
	}
}

func TestAssemblePacketCommitmentV1KeyShape(t *testing.T) {
	prover := &fakeProver{value: []byte("commit"), proofOps: encodedProofOps(t)}
	a := NewAssembler(prover, "ibc")

	if _, err := a.AssemblePacketCommitmentV1(context.Background(), "transfer", "channel-0", 7, ibctypes.NewHeight(0, 50)); err != nil {
		t.Fatalf("AssemblePacketCommitmentV1: %v", err)
	}
	want := "commitments/ports/transfer/channels/channel-0/sequences/7"
	if string(prover.gotKey) != want {
		t.Errorf("got key %q, want %q", prover.gotKey, want)
	}
}

func TestAssembleConnectionHandshakeQueriesAllThree(t *testing.T) {
	prover := &fakeProver{value: []byte("v"), proofOps: encodedProofOps(t)}
	a := NewAssembler(prover, "ibc")

	bundle, err := a.AssembleConnectionHandshake(context.Background(), "07-tendermint-0", "connection-0", ibctypes.NewHeight(0, 10), ibctypes.NewHeight(0, 50))
	if err != nil {
		t.Fatalf("AssembleConnectionHandshake: %v", err)
	}
	if bundle.ClientState == nil || bundle.Connection == nil || bundle.ConsensusState == nil {
		t.Fatalf("expected all three sub-proofs populated, got %+v", bundle)
	}
}

func TestAssemblePacketCommitmentV2KeyShape(t *testing.T) {
	prover := &fakeProver{value: []byte("v"), proofOps: encodedProofOps(t)}
	a := NewAssembler(prover, "ibc")

	if _, err := a.AssemblePacketCommitmentV2(context.Background(), "07-tendermint-0", 3, ibctypes.NewHeight(0, 10)); err != nil {
		t.Fatalf("AssemblePacketCommitmentV2: %v", err)
	}
	if len(prover.gotKey) != len("07-tendermint-0")+1+8 {
		t.Errorf("unexpected v2 key length %d", len(prover.gotKey))
	}
}
