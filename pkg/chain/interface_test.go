package chain

import (
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

func TestValidateBatchLengthsRejectsMismatch(t *testing.T) {
	if err := ValidateBatchLengths(3, 3, 2); err == nil {
		t.Fatalf("expected error for mismatched batch lengths")
	}
	if err := ValidateBatchLengths(3, 3, 3); err != nil {
		t.Fatalf("expected no error for matching lengths, got %v", err)
	}
}

func TestValidateBatchLengthsRejectsEmpty(t *testing.T) {
	if err := ValidateBatchLengths(0); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}

func TestOverrideTimeoutNextSequenceRecvUnordered(t *testing.T) {
	packet := ibctypes.PacketV1{Sequence: 7}
	got := OverrideTimeoutNextSequenceRecv(ibctypes.OrderUnordered, packet, 1)
	if got != 7 {
		t.Errorf("unordered channel: expected override to packet's own sequence 7, got %d", got)
	}
}

func TestOverrideTimeoutNextSequenceRecvOrdered(t *testing.T) {
	packet := ibctypes.PacketV1{Sequence: 7}
	got := OverrideTimeoutNextSequenceRecv(ibctypes.OrderOrdered, packet, 1)
	if got != 1 {
		t.Errorf("ordered channel: expected caller-supplied value 1 preserved, got %d", got)
	}
}

func TestSanitizeIdentifierRejectsInjection(t *testing.T) {
	if err := SanitizeIdentifier("port", "transfer' OR 1=1 --"); err == nil {
		t.Fatalf("expected injection attempt to be rejected")
	}
}
