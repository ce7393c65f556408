package gno

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// foundEvent is one matched event with the height its transaction
// committed at.
type foundEvent struct {
	height uint64
	attrs  []chain.EventAttr
}

// eventSearch runs tx_search for eventType scoped to the given connection
// or client and height range, the Gno-node counterpart of the
// Tendermint driver's TxSearch-based event-log queries. It reads
// tx-indexed events only: this driver does not query block-level events,
// so the Gno SentPackets/WrittenAcks results do not include them.
func (c *Client) eventSearch(ctx context.Context, eventType string, scope chain.Scope, r chain.HeightRange) ([]foundEvent, error) {
	query := eventQuery(eventType, scope, r)
	raw, err := c.call(ctx, "tx_search", map[string]interface{}{"query": query, "page": "1", "per_page": "100", "order_by": "asc"})
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	var result struct {
		Txs []struct {
			Height    string `json:"height"`
			TxResult  struct {
				Events []struct {
					Type  string `json:"type"`
					Attrs []struct {
						Key   string `json:"key"`
						Value string `json:"value"`
					} `json:"attrs"`
				} `json:"Events"`
			} `json:"tx_result"`
		} `json:"txs"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, relayerr.ProtocolError("gno: decode tx_search result: %v", err)
	}
	var out []foundEvent
	for _, tx := range result.Txs {
		var height uint64
		fmt.Sscanf(tx.Height, "%d", &height)
		for _, ev := range tx.TxResult.Events {
			if ev.Type != eventType {
				continue
			}
			attrs := make([]chain.EventAttr, len(ev.Attrs))
			for i, a := range ev.Attrs {
				attrs[i] = chain.EventAttr{Key: a.Key, Value: a.Value}
			}
			out = append(out, foundEvent{height: height, attrs: attrs})
		}
	}
	return out, nil
}

func eventQuery(eventType string, scope chain.Scope, r chain.HeightRange) string {
	terms := []string{fmt.Sprintf("%s.packet_sequence EXISTS", eventType)}
	if scope.ConnectionID != "" {
		terms = append(terms, fmt.Sprintf("%s.packet_connection='%s'", eventType, scope.ConnectionID))
	}
	if scope.ClientID != "" {
		clientAttr := "packet_src_client"
		if eventType == "write_acknowledgement" {
			clientAttr = "packet_dst_client"
		}
		terms = append(terms, fmt.Sprintf("%s.%s='%s'", eventType, clientAttr, scope.ClientID))
	}
	if !r.Min.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height>=%d", r.Min.RevisionHeight))
	}
	if !r.Max.IsZero() {
		terms = append(terms, fmt.Sprintf("tx.height<=%d", r.Max.RevisionHeight))
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out += " AND " + t
	}
	return out
}
