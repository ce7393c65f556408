package tendermint

import (
	"context"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/relaycore/ibc-relayer/pkg/chain"
)

func sentPacketQuery(scope chain.Scope, r chain.HeightRange) string {
	terms := []string{"send_packet.packet_sequence EXISTS"}
	if scope.ConnectionID != "" {
		terms = append(terms, fmt.Sprintf("send_packet.packet_connection='%s'", scope.ConnectionID))
	}
	if scope.ClientID != "" {
		terms = append(terms, fmt.Sprintf("send_packet.packet_src_client='%s'", scope.ClientID))
	}
	if !r.Min.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height>=%d", r.Min.RevisionHeight))
	}
	if !r.Max.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height<=%d", r.Max.RevisionHeight))
	}
	return joinQuery(terms)
}

func writtenAckQuery(scope chain.Scope, r chain.HeightRange) string {
	terms := []string{"write_acknowledgement.packet_sequence EXISTS"}
	if scope.ConnectionID != "" {
		terms = append(terms, fmt.Sprintf("write_acknowledgement.packet_connection='%s'", scope.ConnectionID))
	}
	if scope.ClientID != "" {
		terms = append(terms, fmt.Sprintf("write_acknowledgement.packet_dst_client='%s'", scope.ClientID))
	}
	if !r.Min.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height>=%d", r.Min.RevisionHeight))
	}
	if !r.Max.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height<=%d", r.Max.RevisionHeight))
	}
	return joinQuery(terms)
}

func joinQuery(terms []string) string {
	out := terms[0]
	for _, t := range terms[1:] {
		out += " AND " + t
	}
	return out
}

func (c *Client) sentPacketsFromTxSearch(ctx context.Context, query string) ([]chain.SentPacketEvent, error) {
	page, perPage := 1, 100
	res, err := c.rpc.TxSearch(ctx, query, false, &page, &perPage, "asc")
	if err != nil {
		return nil, wrapNetworkError(err)
	}
	var out []chain.SentPacketEvent
	for _, tx := range res.Txs {
		for _, ev := range tx.TxResult.Events {
			if ev.Type != "send_packet" {
				continue
			}
			packet, err := chain.ParseSentPacketAttributes(chain.AttrMap(toEventAttrs(ev.Attributes)))
			if err != nil {
				return nil, err
			}
			out = append(out, chain.SentPacketEvent{Height: heightAt(tx.Height), V1: packet})
		}
	}
	return out, nil
}

// blockFinalizeEvents walks every height in r (Max zero means up to the
// chain's current height) and returns the FinalizeBlockEvents CometBFT
// recorded for it. ABCI 2.0 (CometBFT 0.38+, what this package targets)
// collapsed BeginBlock/DeliverTx/EndBlock into one FinalizeBlock step, so
// ResultBlockResults carries a single FinalizeBlockEvents list rather than
// separate begin/end slices — block_results is still the only RPC that
// exposes them; BlockSearch only returns block metadata, never ABCI events.
func (c *Client) blockFinalizeEvents(ctx context.Context, r chain.HeightRange) (map[int64][]abcitypes.Event, error) {
	min := int64(r.Min.RevisionHeight)
	if min == 0 {
		min = 1
	}
	max := int64(r.Max.RevisionHeight)
	if max == 0 {
		cur, err := c.CurrentHeight(ctx)
		if err != nil {
			return nil, err
		}
		max = int64(cur.RevisionHeight)
	}

	out := make(map[int64][]abcitypes.Event, max-min+1)
	for h := min; h <= max; h++ {
		height := h
		res, err := c.rpc.BlockResults(ctx, &height)
		if err != nil {
			return nil, wrapNetworkError(err)
		}
		out[h] = res.FinalizeBlockEvents
	}
	return out, nil
}

func (c *Client) sentPacketsFromBlockResults(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.SentPacketEvent, error) {
	byHeight, err := c.blockFinalizeEvents(ctx, r)
	if err != nil {
		return nil, err
	}
	var out []chain.SentPacketEvent
	for h, events := range byHeight {
		for _, ev := range events {
			if ev.Type != "send_packet" {
				continue
			}
			attrs := chain.AttrMap(toEventAttrs(ev.Attributes))
			if scope.ConnectionID != "" && attrs["packet_connection"] != scope.ConnectionID {
				continue
			}
			if scope.ClientID != "" && attrs["packet_src_client"] != scope.ClientID {
				continue
			}
			packet, err := chain.ParseSentPacketAttributes(attrs)
			if err != nil {
				return nil, err
			}
			out = append(out, chain.SentPacketEvent{Height: heightAt(h), V1: packet})
		}
	}
	return out, nil
}

func (c *Client) writtenAcksFromTxSearch(ctx context.Context, query string) ([]chain.WrittenAckEvent, error) {
	page, perPage := 1, 100
	res, err := c.rpc.TxSearch(ctx, query, false, &page, &perPage, "asc")
	if err != nil {
		return nil, wrapNetworkError(err)
	}
	var out []chain.WrittenAckEvent
	for _, tx := range res.Txs {
		for _, ev := range tx.TxResult.Events {
			if ev.Type != "write_acknowledgement" {
				continue
			}
			ack, err := chain.ParseWrittenAckAttributes(chain.AttrMap(toEventAttrs(ev.Attributes)))
			if err != nil {
				return nil, err
			}
			out = append(out, chain.WrittenAckEvent{Height: heightAt(tx.Height), V1: ack})
		}
	}
	return out, nil
}

func (c *Client) writtenAcksFromBlockResults(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.WrittenAckEvent, error) {
	byHeight, err := c.blockFinalizeEvents(ctx, r)
	if err != nil {
		return nil, err
	}
	var out []chain.WrittenAckEvent
	for h, events := range byHeight {
		for _, ev := range events {
			if ev.Type != "write_acknowledgement" {
				continue
			}
			attrs := chain.AttrMap(toEventAttrs(ev.Attributes))
			if scope.ConnectionID != "" && attrs["packet_connection"] != scope.ConnectionID {
				continue
			}
			if scope.ClientID != "" && attrs["packet_dst_client"] != scope.ClientID {
				continue
			}
			ack, err := chain.ParseWrittenAckAttributes(attrs)
			if err != nil {
				return nil, err
			}
			out = append(out, chain.WrittenAckEvent{Height: heightAt(h), V1: ack})
		}
	}
	return out, nil
}
