package chain

// sentPacketKey identifies a v1 packet by its source side, or a v2 packet
// by its source client, both carrying the sequence.
type sentPacketKey struct {
	port, channel, client string
	sequence              uint64
}

func keyOf(e SentPacketEvent) sentPacketKey {
	if e.V1 != nil {
		return sentPacketKey{port: e.V1.SourcePort, channel: e.V1.SourceChannel, sequence: e.V1.Sequence}
	}
	return sentPacketKey{client: e.V2.SourceClient, sequence: e.V2.Sequence}
}

// DedupSentPackets unions results from transaction events and block-level
// (FinalizeBlock) events, deduping by (source port, source channel, sequence)
// for v1 or (source client, sequence) for v2 as required by the
// event-log-query contract.
func DedupSentPackets(fromTxs, fromBlocks []SentPacketEvent) []SentPacketEvent {
	seen := make(map[sentPacketKey]struct{}, len(fromTxs)+len(fromBlocks))
	out := make([]SentPacketEvent, 0, len(fromTxs)+len(fromBlocks))
	for _, batch := range [][]SentPacketEvent{fromTxs, fromBlocks} {
		for _, e := range batch {
			k := keyOf(e)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

type writtenAckKey struct {
	port, channel, client string
	sequence              uint64
}

func ackKeyOf(e WrittenAckEvent) writtenAckKey {
	if e.V1 != nil {
		return writtenAckKey{port: e.V1.OriginalPacket.DestinationPort, channel: e.V1.OriginalPacket.DestinationChannel, sequence: e.V1.OriginalPacket.Sequence}
	}
	return writtenAckKey{client: e.V2.OriginalPacket.DestinationClient, sequence: e.V2.OriginalPacket.Sequence}
}

// DedupWrittenAcks is the ack-side counterpart of DedupSentPackets.
func DedupWrittenAcks(fromTxs, fromBlocks []WrittenAckEvent) []WrittenAckEvent {
	seen := make(map[writtenAckKey]struct{}, len(fromTxs)+len(fromBlocks))
	out := make([]WrittenAckEvent, 0, len(fromTxs)+len(fromBlocks))
	for _, batch := range [][]WrittenAckEvent{fromTxs, fromBlocks} {
		for _, e := range batch {
			k := ackKeyOf(e)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
