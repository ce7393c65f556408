// Package txcodec implements the MsgEncoder (pkg/chain/tendermint) and
// TxBuilder (pkg/chain/gno) collaborator interfaces both drivers leave as
// an injected capability, since the concrete ICS-02/ICS-04 protobuf
// message definitions are out of this repo's scope.
//
// Per pkg/chain/codec.go's own rationale for client/consensus state (both
// drivers only ever talk to a counterparty running the same
// relayer-maintained client), every message here is a signed JSON
// envelope rather than the real ibc-go protobuf Msg types: a stable wire
// form that round-trips everything the relay engine needs without
// depending on ibc-go's or gno's generated code.
package txcodec

import (
	"encoding/json"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/signer"
)

// envelope is the signed wrapper around every encoded message: a type tag,
// the JSON-marshalled body, the signer's public key, and a detached
// signature over the body bytes.
type envelope struct {
	Type      string          `json:"type"`
	Body      json.RawMessage `json:"body"`
	PublicKey []byte          `json:"public_key"`
	Signature []byte          `json:"signature"`
}

// Codec signs and encodes every relay transaction type. One Codec per
// chain side; it implements both tendermint.MsgEncoder and gno.TxBuilder,
// since the wire form and signing step don't vary by driver.
type Codec struct {
	key signer.KeyManager
}

// New builds a Codec that signs with key.
func New(key signer.KeyManager) *Codec {
	return &Codec{key: key}
}

func (c *Codec) seal(msgType string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, relayerr.InvariantViolation("txcodec: marshal %s body: %v", msgType, err)
	}
	sig, err := c.key.Sign(b)
	if err != nil {
		return nil, relayerr.InvariantViolation("txcodec: sign %s: %v", msgType, err)
	}
	env := envelope{Type: msgType, Body: b, PublicKey: c.key.PublicKey(), Signature: sig}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, relayerr.InvariantViolation("txcodec: marshal %s envelope: %v", msgType, err)
	}
	return out, nil
}

type recvPacketsBody struct {
	Batch  []ibctypes.PacketV1 `json:"batch"`
	Proofs []*proof.Bundle     `json:"proofs"`
	Height ibctypes.Height     `json:"height"`
}

func (c *Codec) encodeRecvPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.seal("recv_packets", recvPacketsBody{Batch: batch, Proofs: proofs, Height: height})
}

// EncodeRecvPackets implements tendermint.MsgEncoder.
func (c *Codec) EncodeRecvPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.encodeRecvPackets(batch, proofs, height)
}

// BuildRecvPackets implements gno.TxBuilder.
func (c *Codec) BuildRecvPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.encodeRecvPackets(batch, proofs, height)
}

type ackPacketsBody struct {
	Batch  []ibctypes.AcknowledgementV1 `json:"batch"`
	Proofs []*proof.Bundle              `json:"proofs"`
	Height ibctypes.Height               `json:"height"`
}

func (c *Codec) encodeAckPackets(batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.seal("ack_packets", ackPacketsBody{Batch: batch, Proofs: proofs, Height: height})
}

// EncodeAckPackets implements tendermint.MsgEncoder.
func (c *Codec) EncodeAckPackets(batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.encodeAckPackets(batch, proofs, height)
}

// BuildAckPackets implements gno.TxBuilder.
func (c *Codec) BuildAckPackets(batch []ibctypes.AcknowledgementV1, proofs []*proof.Bundle, height ibctypes.Height) ([]byte, error) {
	return c.encodeAckPackets(batch, proofs, height)
}

type timeoutPacketsBody struct {
	Batch    []ibctypes.PacketV1 `json:"batch"`
	Proofs   []*proof.Bundle     `json:"proofs"`
	NextSeqs []uint64            `json:"next_seqs"`
	Height   ibctypes.Height     `json:"height"`
}

func (c *Codec) encodeTimeoutPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) ([]byte, error) {
	return c.seal("timeout_packets", timeoutPacketsBody{Batch: batch, Proofs: proofs, NextSeqs: nextSeqs, Height: height})
}

// EncodeTimeoutPackets implements tendermint.MsgEncoder.
func (c *Codec) EncodeTimeoutPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) ([]byte, error) {
	return c.encodeTimeoutPackets(batch, proofs, nextSeqs, height)
}

// BuildTimeoutPackets implements gno.TxBuilder.
func (c *Codec) BuildTimeoutPackets(batch []ibctypes.PacketV1, proofs []*proof.Bundle, nextSeqs []uint64, height ibctypes.Height) ([]byte, error) {
	return c.encodeTimeoutPackets(batch, proofs, nextSeqs, height)
}

type createClientBody struct {
	ClientState    *ibctypes.ClientState    `json:"client_state"`
	ConsensusState *ibctypes.ConsensusState `json:"consensus_state"`
}

func (c *Codec) encodeCreateClient(cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) ([]byte, error) {
	return c.seal("create_client", createClientBody{ClientState: cs, ConsensusState: consensus})
}

// EncodeCreateClient implements tendermint.MsgEncoder.
func (c *Codec) EncodeCreateClient(cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) ([]byte, error) {
	return c.encodeCreateClient(cs, consensus)
}

// BuildCreateClient implements gno.TxBuilder.
func (c *Codec) BuildCreateClient(cs *ibctypes.ClientState, consensus *ibctypes.ConsensusState) ([]byte, error) {
	return c.encodeCreateClient(cs, consensus)
}

// headerBody flattens a chain.Header through its interface accessors, so
// the codec does not depend on either driver's concrete Header type.
type headerBody struct {
	TrustedHeight      ibctypes.Height `json:"trusted_height"`
	TargetHeight       ibctypes.Height `json:"target_height"`
	AppHash            []byte          `json:"app_hash"`
	NextValidatorsHash []byte          `json:"next_validators_hash"`
	TimestampUnixNano  int64           `json:"timestamp_unix_nano"`
}

type updateClientBody struct {
	ClientID string     `json:"client_id"`
	Header   headerBody `json:"header"`
}

func (c *Codec) encodeUpdateClient(clientID string, header chain.Header) ([]byte, error) {
	body := updateClientBody{
		ClientID: clientID,
		Header: headerBody{
			TrustedHeight:      header.TrustedHeight(),
			TargetHeight:       header.TargetHeight(),
			AppHash:            header.AppHash(),
			NextValidatorsHash: header.NextValidatorsHash(),
			TimestampUnixNano:  header.Timestamp().UnixNano(),
		},
	}
	return c.seal("update_client", body)
}

// EncodeUpdateClient implements tendermint.MsgEncoder.
func (c *Codec) EncodeUpdateClient(clientID string, header chain.Header) ([]byte, error) {
	return c.encodeUpdateClient(clientID, header)
}

// BuildUpdateClient implements gno.TxBuilder.
func (c *Codec) BuildUpdateClient(clientID string, header chain.Header) ([]byte, error) {
	return c.encodeUpdateClient(clientID, header)
}
