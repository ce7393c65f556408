// Package tendermint is the Chain Client variant for CometBFT/Tendermint
// chains. Grounded on the teacher's RealCometBFTEngine
// (pkg/consensus/bft_integration.go: cmthttp.New, BroadcastTxSync, Tx,
// rpcClient lifecycle) and its structured Logger usage, generalized from
// "submit a ValidatorBlock to our own consensus" to "query and submit
// against an arbitrary counterparty Tendermint chain".
package tendermint

import (
	"context"
	"fmt"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	tmcrypto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// storeKey is the IAVL substore IBC module state is written under.
const storeKey = "ibc"

var _ chain.Client = (*Client)(nil)

// Client drives one CometBFT chain over RPC. It owns exactly one
// persistent connection, shared by queries and tx submission, per the
// one-connection-per-client resource discipline.
type Client struct {
	chainID  string
	rpc      *cmthttp.HTTP
	logger   cmtlog.Logger
	encoder  MsgEncoder

	mu        sync.RWMutex
	connected bool
}

// MsgEncoder turns domain-level IBC operations into signed, broadcastable
// transaction bytes. Left as a collaborator interface: the concrete
// protobuf message definitions and signing key are out of this package's
// scope (supplied by pkg/signer and the caller's codec).
type MsgEncoder interface {
	EncodeRecvPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error)
	EncodeAckPackets(batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error)
	EncodeTimeoutPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) ([]byte, error)
	EncodeCreateClient(cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) ([]byte, error)
	EncodeUpdateClient(clientID string, header chain.Header) ([]byte, error)
}

// New dials rpcURL and returns a connected Client.
func New(ctx context.Context, chainID, rpcURL string, encoder MsgEncoder, logger cmtlog.Logger) (*Client, error) {
	rpc, err := cmthttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, relayerr.ConfigError("tendermint: dial %s: %v", rpcURL, err)
	}
	c := &Client{chainID: chainID, rpc: rpc, logger: logger, encoder: encoder}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Kind() chain.Kind { return chain.KindTendermint }
func (c *Client) ChainID() string  { return c.chainID }

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if err := c.rpc.Start(); err != nil {
		return relayerr.NetworkError(err)
	}
	c.connected = true
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	if err := c.rpc.Stop(); err != nil {
		return relayerr.NetworkError(err)
	}
	c.connected = false
	return nil
}

func (c *Client) CurrentHeight(ctx context.Context) (ibctypes.Height, error) {
	status, err := c.rpc.Status(ctx)
	if err != nil {
		return ibctypes.ZeroHeight, relayerr.NetworkError(err)
	}
	return ibctypes.NewHeight(0, uint64(status.SyncInfo.LatestBlockHeight)), nil
}

func (c *Client) CurrentTime(ctx context.Context) (int64, error) {
	status, err := c.rpc.Status(ctx)
	if err != nil {
		return 0, relayerr.NetworkError(err)
	}
	return status.SyncInfo.LatestBlockTime.UnixNano(), nil
}

func (c *Client) UnbondingPeriod(ctx context.Context) (int64, error) {
	// Unbonding period is a staking-module parameter with no uniform
	// ABCI query path across chains. This driver does not query it and
	// always returns an error, so lightclient.Manager.Create, which calls
	// UnbondingPeriod first, fails against a Tendermint source.
	return 0, relayerr.ProtocolError("tendermint: UnbondingPeriod query is not implemented by this driver")
}

func (c *Client) queryWithProof(ctx context.Context, path string, data []byte, height int64, prove bool) (*coretypes.ResultABCIQuery, error) {
	res, err := c.rpc.ABCIQueryWithOptions(ctx, path, cmtbytes.HexBytes(data), rpcclient.ABCIQueryOptions{Height: height, Prove: prove})
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	if res.Response.Code != 0 {
		return nil, relayerr.ChainExecutionError(res.Response.Log)
	}
	return res, nil
}

// QueryWithProof implements proof.Prover, adapting CometBFT's
// ABCIQueryWithOptions into the Assembler's {value, proofOps} shape.
func (c *Client) QueryWithProof(ctx context.Context, storeKeyName string, key []byte, height int64) ([]byte, *tmcrypto.ProofOps, error) {
	path := fmt.Sprintf("/store/%s/key", storeKeyName)
	res, err := c.queryWithProof(ctx, path, key, height, true)
	if err != nil {
		return nil, nil, err
	}
	return res.Response.Value, res.Response.ProofOps, nil
}

func (c *Client) ClientState(ctx context.Context, clientID string) (*ibctypes.ClientState, error) {
	if err := chain.SanitizeIdentifier("clientID", clientID); err != nil {
		return nil, err
	}
	key, err := proof.KeyV1(proof.KeyClientState, "", "", 0, clientID, "", 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return nil, err
	}
	if len(res.Response.Value) == 0 {
		return nil, relayerr.ProtocolError("tendermint: no client state for %s", clientID)
	}
	return chain.DecodeClientState(res.Response.Value)
}

func (c *Client) ConsensusState(ctx context.Context, clientID string, height ibctypes.Height) (*ibctypes.ConsensusState, error) {
	key, err := proof.KeyV1(proof.KeyConsensusState, "", "", 0, clientID, "", height.RevisionNumber, height.RevisionHeight)
	if err != nil {
		return nil, err
	}
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return nil, err
	}
	return chain.DecodeConsensusState(res.Response.Value)
}

func (c *Client) NextSequenceRecv(ctx context.Context, port, channel string) (uint64, error) {
	if err := chain.SanitizeIdentifier("port", port); err != nil {
		return 0, err
	}
	if err := chain.SanitizeIdentifier("channel", channel); err != nil {
		return 0, err
	}
	key := []byte(fmt.Sprintf("nextSequenceRecv/ports/%s/channels/%s", port, channel))
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return 0, err
	}
	return chain.DecodeSequence(res.Response.Value)
}

func (c *Client) PacketCommitment(ctx context.Context, port, channel string, sequence uint64) ([]byte, error) {
	key, err := proof.KeyV1(proof.KeyPacketCommitment, port, channel, sequence, "", "", 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return nil, err
	}
	return res.Response.Value, nil
}

func (c *Client) UnreceivedPackets(ctx context.Context, port, channel string, sequences []uint64) ([]uint64, error) {
	var unreceived []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV1(proof.KeyPacketReceipt, port, channel, seq, "", "", 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
		if err != nil {
			return nil, err
		}
		if len(res.Response.Value) == 0 {
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
		res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
		if err != nil {
			return nil, err
		}
		// An acknowledged packet has had its source commitment cleared.
		if len(res.Response.Value) != 0 {
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
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return "", err
	}
	return chain.DecodeChannelOrder(res.Response.Value)
}

func (c *Client) PacketCommitmentV2(ctx context.Context, clientID string, sequence uint64) ([]byte, error) {
	key, err := proof.KeyV2(proof.KeyPacketCommitment, clientID, sequence, 0, 0)
	if err != nil {
		return nil, err
	}
	res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
	if err != nil {
		return nil, err
	}
	return res.Response.Value, nil
}

func (c *Client) UnreceivedPacketsV2(ctx context.Context, clientID string, sequences []uint64) ([]uint64, error) {
	var unreceived []uint64
	for _, seq := range sequences {
		key, err := proof.KeyV2(proof.KeyPacketReceipt, clientID, seq, 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
		if err != nil {
			return nil, err
		}
		if len(res.Response.Value) == 0 {
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
		res, err := c.queryWithProof(ctx, fmt.Sprintf("/store/%s/key", storeKey), key, 0, false)
		if err != nil {
			return nil, err
		}
		if len(res.Response.Value) != 0 {
			unacked = append(unacked, seq)
		}
	}
	return unacked, nil
}

func (c *Client) SentPackets(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.SentPacketEvent, error) {
	query := sentPacketQuery(scope, r)
	fromTxs, err := c.sentPacketsFromTxSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	fromBlocks, err := c.sentPacketsFromBlockResults(ctx, scope, r)
	if err != nil {
		return nil, err
	}
	return chain.DedupSentPackets(fromTxs, fromBlocks), nil
}

func (c *Client) WrittenAcks(ctx context.Context, scope chain.Scope, r chain.HeightRange) ([]chain.WrittenAckEvent, error) {
	query := writtenAckQuery(scope, r)
	fromTxs, err := c.writtenAcksFromTxSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	fromBlocks, err := c.writtenAcksFromBlockResults(ctx, scope, r)
	if err != nil {
		return nil, err
	}
	return chain.DedupWrittenAcks(fromTxs, fromBlocks), nil
}

func (c *Client) CreateClient(ctx context.Context, cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) (string, *chain.TxResult, error) {
	tx, err := c.encoder.EncodeCreateClient(cs, consensus)
	if err != nil {
		return "", nil, err
	}
	res, err := c.broadcast(ctx, tx)
	if err != nil {
		return "", nil, err
	}
	clientID, ok := res.Events["create_client.client_id"]
	if !ok {
		return "", nil, relayerr.ProtocolError("tendermint: create_client event missing client_id attribute, tx=%x", res.TxHash)
	}
	return clientID, res, nil
}

func (c *Client) UpdateClient(ctx context.Context, clientID string, header chain.Header) (*chain.TxResult, error) {
	tx, err := c.encoder.EncodeUpdateClient(clientID, header)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) RecvPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs)); err != nil {
		return nil, err
	}
	tx, err := c.encoder.EncodeRecvPackets(batch, proofs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) AckPackets(ctx context.Context, batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs)); err != nil {
		return nil, err
	}
	tx, err := c.encoder.EncodeAckPackets(batch, proofs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) TimeoutPackets(ctx context.Context, batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) (*chain.TxResult, error) {
	if err := chain.ValidateBatchLengths(len(batch), len(proofs), len(nextSeqs)); err != nil {
		return nil, err
	}
	tx, err := c.encoder.EncodeTimeoutPackets(batch, proofs, nextSeqs, height)
	if err != nil {
		return nil, err
	}
	return c.broadcast(ctx, tx)
}

func (c *Client) broadcast(ctx context.Context, tx []byte) (*chain.TxResult, error) {
	res, err := c.rpc.BroadcastTxSync(ctx, tx)
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	if res.Code != 0 {
		return nil, relayerr.ChainExecutionError(res.Log)
	}
	// BroadcastTxSync returns before the tx is included in a block; callers
	// that need the committed height/events poll Tx() by hash.
	committed, err := c.waitForTx(ctx, res.Hash)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (c *Client) waitForTx(ctx context.Context, hash []byte) (*chain.TxResult, error) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		res, err := c.rpc.Tx(ctx, hash, false)
		if err == nil {
			if res.TxResult.Code != 0 {
				return nil, relayerr.ChainExecutionError(res.TxResult.Log)
			}
			return &chain.TxResult{
				Height: res.Height,
				TxHash: hash,
				RawLog: res.TxResult.Log,
				Events: flattenEvents(res.TxResult.Events),
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, relayerr.ErrShutdown
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, relayerr.NetworkError(fmt.Errorf("timed out waiting for tx %x to be indexed", hash))
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
		case <-time.After(time.Second):
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

func flattenEvents(events []abcitypes.Event) map[string]string {
	out := make(map[string]string, len(events))
	for _, ev := range events {
		for _, attr := range ev.Attributes {
			out[ev.Type+"."+attr.Key] = attr.Value
		}
	}
	return out
}
