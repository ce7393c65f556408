package txcodec

import (
	"crypto/ed25519"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/signer"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	km, err := signer.Generate("chain-a", filepath.Join(t.TempDir(), "key.hex"))
	if err != nil {
		t.Fatalf("signer.Generate: %v", err)
	}
	return New(km)
}

type decodedEnvelope struct {
	Type      string          `json:"type"`
	Body      json.RawMessage `json:"body"`
	PublicKey []byte          `json:"public_key"`
	Signature []byte          `json:"signature"`
}

func TestEncodeRecvPacketsProducesVerifiableEnvelope(t *testing.T) {
	km, err := signer.Generate("chain-a", filepath.Join(t.TempDir(), "key.hex"))
	if err != nil {
		t.Fatalf("signer.Generate: %v", err)
	}
	c := New(km)

	batch := []ibctypes.PacketV1{{Sequence: 1, SourcePort: "transfer", SourceChannel: "channel-0"}}
	out, err := c.EncodeRecvPackets(batch, nil, ibctypes.NewHeight(0, 10))
	if err != nil {
		t.Fatalf("EncodeRecvPackets: %v", err)
	}

	var env decodedEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != "recv_packets" {
		t.Fatalf("Type = %q, want recv_packets", env.Type)
	}
	if !ed25519.Verify(ed25519.PublicKey(env.PublicKey), env.Body, env.Signature) {
		t.Fatal("envelope signature failed verification")
	}
	if !ed25519.PublicKey(env.PublicKey).Equal(km.PublicKey()) {
		t.Fatal("envelope public key does not match signer")
	}
}

func TestBuildAndEncodeRecvPacketsAgree(t *testing.T) {
	c := testCodec(t)
	batch := []ibctypes.PacketV1{{Sequence: 1}}
	viaEncode, err := c.EncodeRecvPackets(batch, nil, ibctypes.NewHeight(0, 5))
	if err != nil {
		t.Fatalf("EncodeRecvPackets: %v", err)
	}
	viaBuild, err := c.BuildRecvPackets(batch, nil, ibctypes.NewHeight(0, 5))
	if err != nil {
		t.Fatalf("BuildRecvPackets: %v", err)
	}
	var envA, envB decodedEnvelope
	json.Unmarshal(viaEncode, &envA)
	json.Unmarshal(viaBuild, &envB)
	if string(envA.Body) != string(envB.Body) {
		t.Fatalf("EncodeRecvPackets and BuildRecvPackets produced different bodies")
	}
}

func TestEncodeCreateClientRoundTripsBody(t *testing.T) {
	c := testCodec(t)
	cs, err := ibctypes.NewClientState("chain-a", 1000, 0, ibctypes.NewHeight(0, 1))
	if err != nil {
		t.Fatalf("NewClientState: %v", err)
	}
	out, err := c.EncodeCreateClient(cs, &ibctypes.ConsensusState{})
	if err != nil {
		t.Fatalf("EncodeCreateClient: %v", err)
	}
	var env decodedEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var body createClientBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.ClientState.ChainID != "chain-a" {
		t.Fatalf("ClientState.ChainID = %q, want chain-a", body.ClientState.ChainID)
	}
}
