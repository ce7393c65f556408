// Package gno is the Chain Client variant for Gno.land chains. No
// ecosystem Gno Go SDK exists in the reference corpus (no gnolang/gno.land
// import appears in any example go.mod), so this driver talks to a node's
// tm2-flavoured JSON-RPC endpoint directly over stdlib net/http and
// encoding/json — the one package in this repository built on bare
// networking by necessity, not by omission. Grounded in spirit on the
// teacher's RealCometBFTEngine connection lifecycle
// (pkg/consensus/bft_integration.go), generalized from an RPC client
// struct to a hand-rolled JSON-RPC 2.0 caller.
package gno

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tmcrypto "github.com/cometbft/cometbft/proto/tendermint/crypto"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

var _ chain.Client = (*Client)(nil)

// Client drives one Gno chain over its tm2 JSON-RPC endpoint.
type Client struct {
	chainID string
	baseURL string
	http    *http.Client
	builder TxBuilder

	mu        sync.RWMutex
	connected bool
}

// TxBuilder renders domain-level IBC operations into Gno realm-call
// source, the way the source's Handlebars templates did, and signs the
// result. Left abstract: the realm's exact function signatures and the
// signing key are out of this package's scope.
type TxBuilder interface {
	BuildRecvPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error)
	BuildAckPackets(batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error)
	BuildTimeoutPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) ([]byte, error)
	BuildCreateClient(cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) ([]byte, error)
	BuildUpdateClient(clientID string, header chain.Header) ([]byte, error)
}

// New returns a Client pointed at a Gno node's RPC base URL (e.g.
// "http://localhost:26657").
func New(ctx context.Context, chainID, baseURL string, builder TxBuilder) (*Client, error) {
	c := &Client{chainID: chainID, baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}, builder: builder}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Kind() chain.Kind { return chain.KindGno }
func (c *Client) ChainID() string  { return c.chainID }

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if _, err := c.call(ctx, "status", nil); err != nil {
		return relayerr.NetworkError(err)
	}
	c.connected = true
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("gno rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: "relayer", Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("gno: decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

type abciQueryResult struct {
	Response struct {
		Code      uint32 `json:"Code"`
		Log       string `json:"Log"`
		Value     string `json:"Value"`
		Height    string `json:"Height"`
		ProofOps  *struct {
			Ops []struct {
				Type string `json:"type"`
				Key  string `json:"key"`
				Data string `json:"data"`
			} `json:"ops"`
		} `json:"ProofOps"`
	} `json:"response"`
}

func (c *Client) abciQuery(ctx context.Context, path string, data []byte, height int64, prove bool) (*abciQueryResult, error) {
	params := map[string]interface{}{
		"path":   path,
		"data":   hex.EncodeToString(data),
		"height": fmt.Sprintf("%d", height),
		"prove":  prove,
	}
	raw, err := c.call(ctx, "abci_query", params)
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	var result abciQueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, relayerr.ProtocolError("gno: decode abci_query result: %v", err)
	}
	if result.Response.Code != 0 {
		return nil, relayerr.ChainExecutionError(result.Response.Log)
	}
	return &result, nil
}

// QueryWithProof implements proof.Prover. Gno's ProofOps travel as
// base64-in-JSON rather than the protobuf envelope CometBFT uses; this
// re-wraps them into the same tendermint/crypto ProofOps shape so
// pkg/proof's assembler stays kind-agnostic.
func (c *Client) QueryWithProof(ctx context.Context, storeKey string, key []byte, height int64) ([]byte, *tmcrypto.ProofOps, error) {
	res, err := c.abciQuery(ctx, fmt.Sprintf("/vm/qstore/%s", storeKey), key, height, true)
	if err != nil {
		return nil, nil, err
	}
	value, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil {
		return nil, nil, relayerr.ProtocolError("gno: decode query value: %v", err)
	}
	if res.Response.ProofOps == nil {
		return value, nil, nil
	}
	ops := make([]tmcrypto.ProofOp, 0, len(res.Response.ProofOps.Ops))
	for _, op := range res.Response.ProofOps.Ops {
		keyBytes, err := base64.StdEncoding.DecodeString(op.Key)
		if err != nil {
			return nil, nil, relayerr.ProtocolError("gno: decode proof op key: %v", err)
		}
		dataBytes, err := base64.StdEncoding.DecodeString(op.Data)
		if err != nil {
			return nil, nil, relayerr.ProtocolError("gno: decode proof op data: %v", err)
		}
		ops = append(ops, tmcrypto.ProofOp{Type: op.Type, Key: keyBytes, Data: dataBytes})
	}
	return value, &tmcrypto.ProofOps{Ops: ops}, nil
}

func (c *Client) CurrentHeight(ctx context.Context) (ibctypes.Height, error) {
	raw, err := c.call(ctx, "status", nil)
	if err != nil {
		return ibctypes.ZeroHeight, relayerr.NetworkError(err)
	}
	var status struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return ibctypes.ZeroHeight, relayerr.ProtocolError("gno: decode status: %v", err)
	}
	var h uint64
	if _, err := fmt.Sscanf(status.SyncInfo.LatestBlockHeight, "%d", &h); err != nil {
		return ibctypes.ZeroHeight, relayerr.ProtocolError("gno: malformed latest_block_height: %v", err)
	}
	return ibctypes.NewHeight(0, h), nil
}

func (c *Client) CurrentTime(ctx context.Context) (int64, error) {
	raw, err := c.call(ctx, "status", nil)
	if err != nil {
		return 0, relayerr.NetworkError(err)
	}
	var status struct {
		SyncInfo struct {
			LatestBlockTime time.Time `json:"latest_block_time"`
		} `json:"sync_info"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return 0, relayerr.ProtocolError("gno: decode status: %v", err)
	}
	return status.SyncInfo.LatestBlockTime.UnixNano(), nil
}

func (c *Client) UnbondingPeriod(ctx context.Context) (int64, error) {
	return 0, relayerr.ProtocolError("gno: UnbondingPeriod query is not implemented by this driver")
}

func (c *Client) ClientState(ctx context.Context, clientID string) (*ibctypes.ClientState, error) {
	if err := chain.SanitizeIdentifier("clientID", clientID); err != nil {
		return nil, err
	}
	key, err := proof.KeyV1(proof.KeyClientState, "", "", 0, clientID, "", 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return nil, err
	}
	value, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil || len(value) == 0 {
		return nil, relayerr.ProtocolError("gno: no client state for %s", clientID)
	}
	return chain.DecodeClientState(value)
}

func (c *Client) ConsensusState(ctx context.Context, clientID string, height ibctypes.Height) (*ibctypes.ConsensusState, error) {
	key, err := proof.KeyV1(proof.KeyConsensusState, "", "", 0, clientID, "", height.RevisionNumber, height.RevisionHeight)
	if err != nil {
		return nil, err
	}
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return nil, err
	}
	value, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil {
		return nil, relayerr.ProtocolError("gno: decode consensus state: %v", err)
	}
	return chain.DecodeConsensusState(value)
}

func (c *Client) NextSequenceRecv(ctx context.Context, port, channel string) (uint64, error) {
	if err := chain.SanitizeIdentifier("port", port); err != nil {
		return 0, err
	}
	if err := chain.SanitizeIdentifier("channel", channel); err != nil {
		return 0, err
	}
	key := []byte(fmt.Sprintf("nextSequenceRecv/ports/%s/channels/%s", port, channel))
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return 0, err
	}
	value, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil {
		return 0, relayerr.ProtocolError("gno: decode next sequence recv: %v", err)
	}
	return chain.DecodeSequence(value)
}

func (c *Client) PacketCommitment(ctx context.Context, port, channel string, sequence uint64) ([]byte, error) {
	key, err := proof.KeyV1(proof.KeyPacketCommitment, port, channel, sequence, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(res.Response.Value)
}

func (c *Client) UnreceivedPackets(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error) {
	var unreceived []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV1(proof.KeyPacketReceipt, port, channel, seq, "", "", 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
		if err != nil {
			return nil, err
		}
		if res.Response.Value == "" {
			unreceived = append(unreceived, seq)
		}
	}
	return unreceived, nil
}

func (c *Client) UnreceivedAcks(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error) {
	var unacked []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV1(proof.KeyPacketCommitment, port, channel, seq, "", "", 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
		if err != nil {
			return nil, err
		}
		if res.Response.Value != "" {
			unacked = append(unacked, seq)
		}
	}
	return unacked, nil
}

func (c *Client) ChannelOrdering(ctx context.Context, port, channel string) (ibctypes.ChannelOrder, error) {
	key, err := proof.KeyV1(proof.KeyChannelEnd, port, channel, 0, "", "", 0, 0)
	if err != nil {
		return "", err
	}
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return "", err
	}
	value, err := base64.StdEncoding.DecodeString(res.Response.Value)
	if err != nil {
		return "", relayerr.ProtocolError("gno: decode channel end: %v", err)
	}
	return chain.DecodeChannelOrder(value)
}

func (c *Client) PacketCommitmentV2(ctx context.Context, clientID string, sequence uint64) ([]byte, error) {
	key, err := proof.KeyV2(proof.KeyPacketCommitment, clientID, sequence, 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(res.Response.Value)
}

func (c *Client) UnreceivedPacketsV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error) {
	var unreceived []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV2(proof.KeyPacketReceipt, clientID, seq, 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
		if err != nil {
			return nil, err
		}
		if res.Response.Value == "" {
			unreceived = append(unreceived, seq)
		}
	}
	return unreceived, nil
}

func (c *Client) UnreceivedAcksV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error) {
	var unacked []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV2(proof.KeyPacketCommitment, clientID, seq, 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.abciQuery(ctx, "/vm/qstore/ibc", key, 0, false)
		if err != nil {
			return nil, err
		}
		if res.Response.Value != "" {
			unacked = append(unacked, seq)
		}
	}
	return unacked, nil
}

func (c *Client) SentPackets(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.SentPacketEvent, error) {
	events, err := c.eventSearch(ctx, "send_packet", scope, r)
	if err != nil {
		return nil, err
	}
	var out []chain.SentPacketEvent
	for _, e := range events {
		packet, err := chain.ParseSentPacketAttributes(chain.AttrMap(e.attrs))
		if err != nil {
			return nil, err
		}
		out = append(out, chain.SentPacketEvent{Height: ibctypes.NewHeight(0, e.height), V1: packet})
	}
	return chain.DedupSentPackets(out, nil), nil
}

func (c *Client) WrittenAcks(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.WrittenAckEvent, error) {
	events, err := c.eventSearch(ctx, "write_acknowledgement", scope, r)
	if err != nil {
		return nil, err
	}
	var out []chain.WrittenAckEvent
	for _, e := range events {
		ack, err := chain.ParseWrittenAckAttributes(chain.AttrMap(e.attrs))
		if err != nil {
			return nil, err
		}
		out = append(out, chain.WrittenAckEvent{Height: ibctypes.NewHeight(0, e.height), V1: ack})
	}
	return chain.DedupWrittenAcks(out, nil), nil
}

func (c *Client) CreateClient(ctx context.Context, cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) (string, *chain.TxResult, error) {
	tx, err := c.builder.BuildCreateClient(cs, consensus)
	if err != nil {
		return "", nil, err
	}
	res, err := c.broadcast(ctx, tx)
	if err != nil {
		return "", nil, err
	}
	clientID, ok := res.Events["create_client.client_id"]
	if !ok {
		return "", nil, relayerr.ProtocolError("gno: create_client event missing client_id attribute, tx=%x", res.TxHash)
	}
	return clientID, res, nil
}

func (c *Client) UpdateClient(ctx context.Context, clientID string, header chain.Header) (*chain.TxResult, error) {
	tx, err := c.builder.BuildUpdateClient(clientID, header)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) RecvPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs)); err != nil {
		return nil, err
	}
	tx, err := c.builder.BuildRecvPackets(batch, proofs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) AckPackets(ctx context.Context, batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs)); err != nil {
		return nil, err
	}
	tx, err := c.builder.BuildAckPackets(batch, proofs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) TimeoutPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs), len(nextSeqs)); err != nil {
		return nil, err
	}
	tx, err := c.builder.BuildTimeoutPackets(batch, proofs, nextSeqs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) broadcast(ctx context.Context, tx []byte) (*chain.TxResult, error) {
	params := map[string]interface{}{"tx": base64.StdEncoding.EncodeToString(tx)}
	raw, err := c.call(ctx, "broadcast_tx_commit", params)
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	var result struct {
		Hash string `json:"hash"`
		Height string `json:"height"`
		DeliverTx struct {
			Code   uint32 `json:"Code"`
			Log    string `json:"Log"`
			Events []struct {
				Type  string `json:"type"`
				Attrs []struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"attrs"`
			} `json:"Events"`
		} `json:"deliver_tx"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, relayerr.ProtocolError("gno: decode broadcast_tx_commit result: %v", err)
	}
	if result.DeliverTx.Code != 0 {
		return nil, relayerr.ChainExecutionError(result.DeliverTx.Log)
	}
	hash, err := hex.DecodeString(result.Hash)
	if err != nil {
		return nil, relayerr.ProtocolError("gno: decode tx hash: %v", err)
	}
	events := make(map[string]string)
	for _, ev := range result.DeliverTx.Events {
		for _, a := range ev.Attrs {
			events[ev.Type+"."+a.Key] = a.Value
		}
	}
	var height int64
	fmt.Sscanf(result.Height, "%d", &height)
	return &chain.TxResult{Height: height, TxHash: hash, RawLog: result.DeliverTx.Log, Events: events}, nil
}

func (c *Client) WaitOneBlock(ctx context.Context) error {
	start, err := c.CurrentHeight(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return relayerr.ErrShutdown
		case <-time.After(2 * time.Second):
		}
		cur, err := c.CurrentHeight(ctx)
		if err != nil {
			return err
		}
		if cur.GT(start) {
			return nil
		}
	}
}
