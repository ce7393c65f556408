package link

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/endpoint"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

// fakeClient implements chain.Client with just enough behavior to drive
// the pending-packet/ack discovery and the no-op guards on the relay
// methods; it is not a full chain simulator.
type fakeClient struct {
	chain.Client

	commitments map[string][]byte // "port/channel/seq" -> value, missing means cleared
	unreceived  map[uint64]bool
	unacked     map[uint64]bool
	order       ibctypes.ChannelOrder

	waitBlockCalls int

	mu                    sync.Mutex
	channelOrderingCalls  map[string]int
	nextSequenceRecvCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		commitments:           map[string][]byte{},
		unreceived:            map[uint64]bool{},
		unacked:               map[uint64]bool{},
		order:                 ibctypes.OrderUnordered,
		channelOrderingCalls:  map[string]int{},
		nextSequenceRecvCalls: map[string]int{},
	}
}

func commitKey(port, channel string, seq uint64) string {
	return fmt.Sprintf("%s/%s/%d", port, channel, seq)
}

func (f *fakeClient) PacketCommitment(ctx context.Context, port, channel string, sequence uint64) ([]byte, error) {
	return f.commitments[commitKey(port, channel, sequence)], nil
}

func (f *fakeClient) PacketCommitmentV2(ctx context.Context, clientID string, sequence uint64) ([]byte, error) {
	return f.commitments[commitKey(clientID, "", sequence)], nil
}

func (f *fakeClient) UnreceivedPackets(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error) {
	var out []uint64
	for _, s := range sequences {
		if f.unreceived[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeClient) UnreceivedPacketsV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error) {
	return f.UnreceivedPackets(ctx, clientID, "", sequences)
}

func (f *fakeClient) UnreceivedAcks(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error) {
	var out []uint64
	for _, s := range sequences {
		if f.unacked[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeClient) UnreceivedAcksV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error) {
	return f.UnreceivedAcks(ctx, clientID, "", sequences)
}

func (f *fakeClient) ChannelOrdering(ctx context.Context, port, channel string) (ibctypes.ChannelOrder, error) {
	f.mu.Lock()
	f.channelOrderingCalls[commitKey(port, channel, 0)]++
	f.mu.Unlock()
	return f.order, nil
}

func (f *fakeClient) NextSequenceRecv(ctx context.Context, port, channel string) (uint64, error) {
	f.mu.Lock()
	f.nextSequenceRecvCalls[commitKey(port, channel, 0)]++
	f.mu.Unlock()
	return 0, nil
}

func (f *fakeClient) WaitOneBlock(ctx context.Context) error {
	f.waitBlockCalls++
	return nil
}

var _ chain.Client = (*fakeClient)(nil)

func v1Sent(height uint64, seq uint64, destPort, destChan string) chain.SentPacketEvent {
	return chain.SentPacketEvent{
		Height: ibctypes.NewHeight(0, height),
		V1: &ibctypes.PacketV1{
			Sequence:           seq,
			SourcePort:         "transfer",
			SourceChannel:      "channel-0",
			DestinationPort:    destPort,
			DestinationChannel: destChan,
		},
	}
}

func TestSplitSubmitTimeoutPartitionsByHeightAndTime(t *testing.T) {
	events := []chain.SentPacketEvent{
		{Height: ibctypes.NewHeight(0, 1), V1: &ibctypes.PacketV1{Sequence: 1, TimeoutHeight: ibctypes.NewHeight(0, 100)}},
		{Height: ibctypes.NewHeight(0, 2), V1: &ibctypes.PacketV1{Sequence: 2, TimeoutHeight: ibctypes.NewHeight(0, 50)}},
		{Height: ibctypes.NewHeight(0, 3), V1: &ibctypes.PacketV1{Sequence: 3, TimeoutTimestamp: 500}},
		{Height: ibctypes.NewHeight(0, 4), V1: &ibctypes.PacketV1{Sequence: 4}}, // no deadline, never expires
	}
	submit, timeout := splitSubmitTimeout(events, ibctypes.NewHeight(0, 60), 1000)

	if len(submit) != 2 || len(timeout) != 2 {
		t.Fatalf("submit=%d timeout=%d, want 2/2", len(submit), len(timeout))
	}
	for _, e := range timeout {
		if e.V1.Sequence != 2 && e.V1.Sequence != 3 {
			t.Fatalf("unexpected sequence %d in timeout set", e.V1.Sequence)
		}
	}
}

func TestPendingSentPacketsDropsClearedCommitments(t *testing.T) {
	src := newFakeClient()
	src.commitments[commitKey("transfer", "channel-0", 1)] = []byte("still-pending")
	// sequence 2's commitment is already cleared (already timed out/relayed).

	dst := newFakeClient()
	dst.unreceived[1] = true
	dst.unreceived[2] = true

	events := []chain.SentPacketEvent{
		v1Sent(10, 1, "transfer", "channel-1"),
		v1Sent(11, 2, "transfer", "channel-1"),
	}

	l := &Link{
		A: &endpoint.Endpoint{Client: &recordingSentClient{fakeClient: src, events: events}, ClientID: "c-a", ConnectionID: "connection-0", Version: 1},
		B: &endpoint.Endpoint{Client: dst, ClientID: "c-b", ConnectionID: "connection-1", Version: 1},
	}

	out, err := l.pendingSentPackets(context.Background(), l.A, l.B, ibctypes.ZeroHeight)
	if err != nil {
		t.Fatalf("pendingSentPackets: %v", err)
	}
	if len(out) != 1 || out[0].V1.Sequence != 1 {
		t.Fatalf("out = %+v, want only sequence 1", out)
	}
}

func TestPendingSentPacketsRespectsFilter(t *testing.T) {
	src := newFakeClient()
	dst := newFakeClient()
	dst.unreceived[1] = true
	dst.unreceived[2] = true

	events := []chain.SentPacketEvent{
		v1Sent(10, 1, "transfer", "channel-1"),
		v1Sent(11, 2, "transfer", "channel-1"),
	}

	l := &Link{
		A: &endpoint.Endpoint{Client: &recordingSentClient{fakeClient: src, events: events}, ClientID: "c-a", ConnectionID: "connection-0", Version: 1},
		B: &endpoint.Endpoint{Client: dst, ClientID: "c-b", ConnectionID: "connection-1", Version: 1},
	}
	l.SetFilter(func(e chain.SentPacketEvent) bool { return e.V1.Sequence == 1 })

	out, err := l.pendingSentPackets(context.Background(), l.A, l.B, ibctypes.ZeroHeight)
	if err != nil {
		t.Fatalf("pendingSentPackets: %v", err)
	}
	if len(out) != 1 || out[0].V1.Sequence != 1 {
		t.Fatalf("out = %+v, want only the filtered-in sequence 1", out)
	}
}

func TestRelayPacketsNoOpOnEmptyBatch(t *testing.T) {
	l := &Link{}
	n, err := l.relayPackets(context.Background(), nil, nil, nil, nil, nil)
	if err != nil || n != 0 {
		t.Fatalf("relayPackets on empty batch = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRelayAcksNoOpOnEmptyBatch(t *testing.T) {
	l := &Link{}
	n, err := l.relayAcks(context.Background(), nil, nil, nil, nil, nil)
	if err != nil || n != 0 {
		t.Fatalf("relayAcks on empty batch = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRelayTimeoutsNoOpOnEmptyBatch(t *testing.T) {
	l := &Link{}
	n, err := l.relayTimeouts(context.Background(), nil, nil, nil, nil, nil)
	if err != nil || n != 0 {
		t.Fatalf("relayTimeouts on empty batch = (%d, %v), want (0, nil)", n, err)
	}
}

func TestChannelStatesForDedupsByPortAndChannel(t *testing.T) {
	counterparty := newFakeClient()
	counterparty.order = ibctypes.OrderOrdered

	timeouts := []chain.SentPacketEvent{
		v1Sent(1, 1, "transfer", "channel-1"),
		v1Sent(2, 2, "transfer", "channel-1"),
		v1Sent(3, 3, "transfer", "channel-1"),
		v1Sent(4, 4, "transfer", "channel-2"),
	}
	side := &endpoint.Endpoint{Client: counterparty, ClientID: "c-b", ConnectionID: "connection-1", Version: 1}

	states, err := channelStatesFor(context.Background(), side, timeouts)
	if err != nil {
		t.Fatalf("channelStatesFor: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("channelStatesFor returned %d entries, want 2 distinct (port,channel) pairs", len(states))
	}
	if got := counterparty.channelOrderingCalls[commitKey("transfer", "channel-1", 0)]; got != 1 {
		t.Fatalf("ChannelOrdering called %d times for channel-1, want exactly 1 despite 3 packets", got)
	}
	if got := counterparty.channelOrderingCalls[commitKey("transfer", "channel-2", 0)]; got != 1 {
		t.Fatalf("ChannelOrdering called %d times for channel-2, want exactly 1", got)
	}
	// Ordered channel also needs NextSequenceRecv, once per channel.
	if got := counterparty.nextSequenceRecvCalls[commitKey("transfer", "channel-1", 0)]; got != 1 {
		t.Fatalf("NextSequenceRecv called %d times for channel-1, want exactly 1", got)
	}
	for _, k := range []portChannelKey{{"transfer", "channel-1"}, {"transfer", "channel-2"}} {
		if states[k].order != ibctypes.OrderOrdered {
			t.Fatalf("states[%+v].order = %v, want OrderOrdered", k, states[k].order)
		}
	}
}

func TestMaxDurationPicksLarger(t *testing.T) {
	if got := maxDuration(2*time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("maxDuration = %v, want 5s", got)
	}
}

// recordingSentClient layers a fixed SentPackets response on top of a
// fakeClient so pendingSentPackets can be driven without a real chain.
type recordingSentClient struct {
	*fakeClient
	events []chain.SentPacketEvent
}

func (c *recordingSentClient) SentPackets(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.SentPacketEvent, error) {
	return c.events, nil
}
