package link

import (
	"context"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/endpoint"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

type identityKey struct {
	port, channel, client string
}

func sentPacketIdentity(e chain.SentPacketEvent) (identityKey, uint64) {
	if e.V1 != nil {
		return identityKey{port: e.V1.DestinationPort, channel: e.V1.DestinationChannel}, e.V1.Sequence
	}
	return identityKey{client: e.V2.DestinationClient}, e.V2.Sequence
}

// pendingSentPackets queries send_packet events on src from fromHeight,
// applies the installed filter, groups by destination identity (v1
// port+channel, v2 client) to batch the unreceivedPackets lookup against
// dst, and drops any packet whose source-side commitment has already
// been cleared (already timed out).
func (l *Link) pendingSentPackets(ctx context.Context, src, dst *endpoint.Endpoint, from ibctypes.Height) ([]chain.SentPacketEvent, error) {
	events, err := src.QuerySentPackets(ctx, from, ibctypes.ZeroHeight)
	if err != nil {
		return nil, err
	}
	events = l.filterSentPackets(events)
	if len(events) == 0 {
		return nil, nil
	}

	groups := map[identityKey][]int{}
	for i, e := range events {
		k, _ := sentPacketIdentity(e)
		groups[k] = append(groups[k], i)
	}

	keep := make([]bool, len(events))
	for k, idxs := range groups {
		seqs := make([]uint64, len(idxs))
		for i, idx := range idxs {
			_, seqs[i] = sentPacketIdentity(events[idx])
		}
		var unreceived []uint64
		var err error
		if k.client != "" {
			unreceived, err = dst.Client.UnreceivedPacketsV2(ctx, k.client, seqs)
		} else {
			unreceived, err = dst.Client.UnreceivedPackets(ctx, k.port, k.channel, seqs)
		}
		if err != nil {
			return nil, err
		}
		unreceivedSet := toSet(unreceived)
		for _, idx := range idxs {
			_, seq := sentPacketIdentity(events[idx])
			if unreceivedSet[seq] {
				keep[idx] = true
			}
		}
	}

	out := make([]chain.SentPacketEvent, 0, len(events))
	for i, e := range events {
		if !keep[i] {
			continue
		}
		cleared, err := l.sourceCommitmentCleared(ctx, src, e)
		if err != nil {
			return nil, err
		}
		if cleared {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Link) sourceCommitmentCleared(ctx context.Context, src *endpoint.Endpoint, e chain.SentPacketEvent) (bool, error) {
	var commitment []byte
	var err error
	if e.V1 != nil {
		commitment, err = src.Client.PacketCommitment(ctx, e.V1.SourcePort, e.V1.SourceChannel, e.V1.Sequence)
	} else {
		commitment, err = src.Client.PacketCommitmentV2(ctx, e.V2.SourceClient, e.V2.Sequence)
	}
	if err != nil {
		return false, err
	}
	return len(commitment) == 0, nil
}

func writtenAckIdentity(e chain.WrittenAckEvent) (identityKey, uint64) {
	if e.V1 != nil {
		return identityKey{port: e.V1.OriginalPacket.SourcePort, channel: e.V1.OriginalPacket.SourceChannel}, e.V1.OriginalPacket.Sequence
	}
	return identityKey{client: e.V2.OriginalPacket.SourceClient}, e.V2.OriginalPacket.Sequence
}

// pendingAcks queries write_acknowledgement events on ackSide from
// fromHeight, applies the filter against each ack's original packet,
// groups by the original packet's source identity to batch the
// unreceivedAcks lookup against deliverSide (the original sender), and
// keeps only acks whose source-side commitment is still present (not yet
// delivered back).
func (l *Link) pendingAcks(ctx context.Context, ackSide, deliverSide *endpoint.Endpoint, from ibctypes.Height) ([]chain.WrittenAckEvent, error) {
	events, err := ackSide.QueryWrittenAcks(ctx, from, ibctypes.ZeroHeight)
	if err != nil {
		return nil, err
	}
	events = l.filterWrittenAcks(events)
	if len(events) == 0 {
		return nil, nil
	}

	groups := map[identityKey][]int{}
	for i, e := range events {
		k, _ := writtenAckIdentity(e)
		groups[k] = append(groups[k], i)
	}

	keep := make([]bool, len(events))
	for k, idxs := range groups {
		seqs := make([]uint64, len(idxs))
		for i, idx := range idxs {
			_, seqs[i] = writtenAckIdentity(events[idx])
		}
		var unacked []uint64
		var err error
		if k.client != "" {
			unacked, err = deliverSide.Client.UnreceivedAcksV2(ctx, k.client, seqs)
		} else {
			unacked, err = deliverSide.Client.UnreceivedAcks(ctx, k.port, k.channel, seqs)
		}
		if err != nil {
			return nil, err
		}
		unackedSet := toSet(unacked)
		for _, idx := range idxs {
			_, seq := writtenAckIdentity(events[idx])
			if unackedSet[seq] {
				keep[idx] = true
			}
		}
	}

	out := make([]chain.WrittenAckEvent, 0, len(events))
	for i, e := range events {
		if keep[i] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Link) filterSentPackets(events []chain.SentPacketEvent) []chain.SentPacketEvent {
	pred := l.currentFilter()
	if pred == nil {
		return events
	}
	out := make([]chain.SentPacketEvent, 0, len(events))
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Link) filterWrittenAcks(events []chain.WrittenAckEvent) []chain.WrittenAckEvent {
	pred := l.currentFilter()
	if pred == nil {
		return events
	}
	out := make([]chain.WrittenAckEvent, 0, len(events))
	for _, e := range events {
		var synthetic chain.SentPacketEvent
		if e.V1 != nil {
			synthetic = chain.SentPacketEvent{Height: e.Height, V1: &e.V1.OriginalPacket}
		} else {
			synthetic = chain.SentPacketEvent{Height: e.Height, V2: &e.V2.OriginalPacket}
		}
		if pred(synthetic) {
			out = append(out, e)
		}
	}
	return out
}

func toSet(seqs []uint64) map[uint64]bool {
	m := make(map[uint64]bool, len(seqs))
	for _, s := range seqs {
		m[s] = true
	}
	return m
}
