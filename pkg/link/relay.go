package link

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/endpoint"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/lightclient"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/retry"
)

func maxEventHeight(events []chain.SentPacketEvent) ibctypes.Height {
	max := events[0].Height
	for _, e := range events[1:] {
		if e.Height.GT(max) {
			max = e.Height
		}
	}
	return max
}

func maxAckHeight(events []chain.WrittenAckEvent) ibctypes.Height {
	max := events[0].Height
	for _, e := range events[1:] {
		if e.Height.GT(max) {
			max = e.Height
		}
	}
	return max
}

// relayPackets updates the client on dst tracking src to cover the
// highest observed packet height, assembles a commitment proof per
// packet against src, and submits a batched RecvPackets on dst with
// retry on transient errors. v1 packets only: RecvPackets is typed to
// ibctypes.PacketV1, since v2 message construction is not wired at the
// Chain Client layer (the transactional methods of chain.Client in
// pkg/chain/interface.go take v1 packets and acknowledgements only).
func (l *Link) relayPackets(ctx context.Context, src, dst *endpoint.Endpoint, proverOnSrc *proof.Assembler, clientOnDst *lightclient.Manager, submit []chain.SentPacketEvent) (int, error) {
	if len(submit) == 0 {
		return 0, nil
	}
	needed := maxEventHeight(submit).Increment()
	if err := clientOnDst.Update(ctx, needed); err != nil {
		return 0, err
	}

	var batch []ibctypes.PacketV1
	var bundles []*proof.Bundle
	for _, e := range submit {
		if e.V1 == nil {
			continue
		}
		bundle, err := proverOnSrc.AssemblePacketCommitmentV1(ctx, e.V1.SourcePort, e.V1.SourceChannel, e.V1.Sequence, needed)
		if err != nil {
			return 0, err
		}
		batch = append(batch, *e.V1)
		bundles = append(bundles, bundle)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := retry.Do(ctx, l.RetryConfig, relayerr.IsRetryable, func(ctx context.Context) error {
		_, err := dst.Client.RecvPackets(ctx, batch, bundles, needed)
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// relayAcks updates the client on deliverSide tracking ackSide, assembles
// an ack proof per packet against ackSide, and submits a batched
// AckPackets on deliverSide (the original sender) with retry.
func (l *Link) relayAcks(ctx context.Context, ackSide, deliverSide *endpoint.Endpoint, proverOnAckSide *proof.Assembler, clientOnDeliverSide *lightclient.Manager, acks []chain.WrittenAckEvent) (int, error) {
	if len(acks) == 0 {
		return 0, nil
	}
	needed := maxAckHeight(acks).Increment()
	if err := clientOnDeliverSide.Update(ctx, needed); err != nil {
		return 0, err
	}

	var batch []ibctypes.AcknowledgementV1
	var bundles []*proof.Bundle
	for _, e := range acks {
		if e.V1 == nil {
			continue
		}
		p := e.V1.OriginalPacket
		bundle, err := proverOnAckSide.AssembleAckV1(ctx, p.DestinationPort, p.DestinationChannel, p.Sequence, needed)
		if err != nil {
			return 0, err
		}
		batch = append(batch, *e.V1)
		bundles = append(bundles, bundle)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := retry.Do(ctx, l.RetryConfig, relayerr.IsRetryable, func(ctx context.Context) error {
		_, err := deliverSide.Client.AckPackets(ctx, batch, bundles, needed)
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// portChannelKey identifies one (port, channel) pair for the channel-
// ordering/next-sequence lookups relayTimeouts shares across a batch.
type portChannelKey struct {
	port, channel string
}

// channelState is one (port, channel)'s ordering and, for ordered
// channels, its next expected receive sequence.
type channelState struct {
	order   ibctypes.ChannelOrder
	nextSeq uint64
}

// channelStatesFor fetches ChannelOrdering (and NextSequenceRecv for
// ordered channels) once per distinct (port, channel) pair found across
// timeouts, in parallel, rather than once per packet.
func channelStatesFor(ctx context.Context, side *endpoint.Endpoint, timeouts []chain.SentPacketEvent) (map[portChannelKey]channelState, error) {
	var keys []portChannelKey
	seen := make(map[portChannelKey]bool)
	for _, e := range timeouts {
		if e.V1 == nil {
			continue
		}
		k := portChannelKey{e.V1.DestinationPort, e.V1.DestinationChannel}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	states := make([]channelState, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			order, err := side.Client.ChannelOrdering(gctx, k.port, k.channel)
			if err != nil {
				return err
			}
			var nextSeq uint64
			if order == ibctypes.OrderOrdered {
				nextSeq, err = side.Client.NextSequenceRecv(gctx, k.port, k.channel)
				if err != nil {
					return err
				}
			}
			states[i] = channelState{order: order, nextSeq: nextSeq}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[portChannelKey]channelState, len(keys))
	for i, k := range keys {
		out[k] = states[i]
	}
	return out, nil
}

// relayTimeouts proves, on counterpartySide, that each packet in timeouts
// was never received there, then submits TimeoutPackets back on src (the
// original sender) to release its commitment. A timeout proof needs a
// block committed after the packet's deadline, so counterpartySide waits
// one block before proving absence; clientOnSrc is the light client on
// src tracking counterpartySide, which must cover the proof height.
func (l *Link) relayTimeouts(ctx context.Context, src, counterpartySide *endpoint.Endpoint, proverOnCounterparty *proof.Assembler, clientOnSrc *lightclient.Manager, timeouts []chain.SentPacketEvent) (int, error) {
	if len(timeouts) == 0 {
		return 0, nil
	}
	if err := counterpartySide.Client.WaitOneBlock(ctx); err != nil {
		return 0, err
	}
	height, err := counterpartySide.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}
	needed := height.Increment()
	if err := clientOnSrc.Update(ctx, needed); err != nil {
		return 0, err
	}

	channelStates, err := channelStatesFor(ctx, counterpartySide, timeouts)
	if err != nil {
		return 0, err
	}

	var batch []ibctypes.PacketV1
	var bundles []*proof.Bundle
	var nextSeqs []uint64
	for _, e := range timeouts {
		if e.V1 == nil {
			continue
		}
		p := *e.V1
		bundle, err := proverOnCounterparty.AssembleTimeoutV1(ctx, p.DestinationPort, p.DestinationChannel, p.Sequence, needed)
		if err != nil {
			return 0, err
		}
		cs := channelStates[portChannelKey{p.DestinationPort, p.DestinationChannel}]
		nextSeq := chain.OverrideTimeoutNextSequenceRecv(cs.order, p, cs.nextSeq)

		batch = append(batch, p)
		bundles = append(bundles, bundle)
		nextSeqs = append(nextSeqs, nextSeq)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err = retry.Do(ctx, l.RetryConfig, relayerr.IsRetryable, func(ctx context.Context) error {
		_, err := src.Client.TimeoutPackets(ctx, batch, bundles, nextSeqs, needed)
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}
