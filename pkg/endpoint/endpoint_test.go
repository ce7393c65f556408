package endpoint

import (
	"context"
	"testing"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

type scopeRecordingClient struct {
	chain.Client // nil embed: only the methods under test are implemented below
	lastScope    chain.Scope
	lastRange    chain.HeightRange
}

func (c *scopeRecordingClient) SentPackets(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.SentPacketEvent, error) {
	c.lastScope = scope
	c.lastRange = r
	return nil, nil
}

func (c *scopeRecordingClient) WrittenAcks(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.WrittenAckEvent, error) {
	c.lastScope = scope
	c.lastRange = r
	return nil, nil
}

func TestNewInfersVersionFromConnectionID(t *testing.T) {
	v1, err := New(&scopeRecordingClient{}, "07-tendermint-0", "connection-0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v1.Version != 1 {
		t.Fatalf("Version = %d, want 1", v1.Version)
	}

	v2, err := New(&scopeRecordingClient{}, "07-tendermint-0", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v2.Version != 2 {
		t.Fatalf("Version = %d, want 2", v2.Version)
	}
}

func TestNewRejectsEmptyClientID(t *testing.T) {
	if _, err := New(&scopeRecordingClient{}, "", "connection-0"); err == nil {
		t.Fatal("expected error for empty clientID")
	}
}

func TestQuerySentPacketsUsesConnectionScopeForV1(t *testing.T) {
	c := &scopeRecordingClient{}
	e, err := New(c, "07-tendermint-0", "connection-0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.QuerySentPackets(context.Background(), ibctypes.NewHeight(0, 10), ibctypes.ZeroHeight); err != nil {
		t.Fatalf("QuerySentPackets: %v", err)
	}
	if c.lastScope.ConnectionID != "connection-0" || c.lastScope.ClientID != "" {
		t.Fatalf("scope = %+v, want connection-0 scoped", c.lastScope)
	}
	if c.lastRange.Min.RevisionHeight != 10 {
		t.Fatalf("range.Min = %v, want height 10", c.lastRange.Min)
	}
}

func TestQueryWrittenAcksUsesClientScopeForV2(t *testing.T) {
	c := &scopeRecordingClient{}
	e, err := New(c, "07-tendermint-0", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.QueryWrittenAcks(context.Background(), ibctypes.ZeroHeight, ibctypes.ZeroHeight); err != nil {
		t.Fatalf("QueryWrittenAcks: %v", err)
	}
	if c.lastScope.ClientID != "07-tendermint-0" || c.lastScope.ConnectionID != "" {
		t.Fatalf("scope = %+v, want client scoped", c.lastScope)
	}
}
