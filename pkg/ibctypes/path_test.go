package ibctypes

import "testing"

func TestValidateIdentifierRejectsInjection(t *testing.T) {
	// A clientA crafted for SQL/query injection must be rejected before
	// any RPC is issued.
	if err := ValidateIdentifier("clientA", "07-tendermint-0' OR 1=1 --"); err == nil {
		t.Fatalf("expected injection attempt to be rejected")
	}
}

func TestValidateIdentifierAcceptsNormal(t *testing.T) {
	for _, v := range []string{"07-tendermint-0", "channel-12", "transfer", "client_id.v2"} {
		if err := ValidateIdentifier("field", v); err != nil {
			t.Errorf("expected %q to be accepted, got %v", v, err)
		}
	}
}

func TestRelayPathValidate(t *testing.T) {
	p := &RelayPath{
		ID:         "path-0",
		ChainIDA:   "chainA",
		ChainIDB:   "chainB",
		ChainTypeA: ClientKindTendermint,
		ChainTypeB: ClientKindGno,
		ClientA:    "07-tendermint-0",
		ClientB:    "gno-client-0",
		Version:    IBCVersionChannels,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid path, got %v", err)
	}

	bad := *p
	bad.ClientA = "07-tendermint-0' OR 1=1 --"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected injection attempt in clientA to be rejected")
	}
}
