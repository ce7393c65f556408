package gno

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// Header is the Gno light-client update header. Gno's consensus-state
// shape is simpler than Tendermint's validator-set-driven one — it
// carries only the committed app hash, next-validators hash and timestamp
// at the target height — but it satisfies the same chain.Header/BuildUpdateHeader
// capability every variant exposes.
type Header struct {
	trusted            ibctypes.Height
	target             ibctypes.Height
	appHash            []byte
	nextValidatorsHash []byte
	timestamp          time.Time
}

func (h *Header) TrustedHeight() ibctypes.Height { return h.trusted }

func (h *Header) TargetHeight() ibctypes.Height { return h.target }

func (h *Header) AppHash() []byte { return h.appHash }

func (h *Header) NextValidatorsHash() []byte { return h.nextValidatorsHash }

func (h *Header) Timestamp() time.Time { return h.timestamp }

// BuildUpdateHeader fetches the committed block header at targetHeight.
// trustedHeight is carried through unchanged: unlike Tendermint, Gno's
// consensus-state shape here has no separate validator-set anchoring step.
func (c *Client) BuildUpdateHeader(ctx context.Context, trustedHeight, targetHeight ibctypes.Height) (chain.Header, error) {
	raw, err := c.call(ctx, "commit", map[string]interface{}{"height": fmt.Sprintf("%d", targetHeight.RevisionHeight)})
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	var result struct {
		SignedHeader struct {
			Header struct {
				AppHash            string    `json:"app_hash"`
				NextValidatorsHash string    `json:"next_validators_hash"`
				Time               time.Time `json:"time"`
			} `json:"header"`
		} `json:"signed_header"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, relayerr.ProtocolError("gno: decode commit result: %v", err)
	}
	appHash, err := base64.StdEncoding.DecodeString(result.SignedHeader.Header.AppHash)
	if err != nil {
		return nil, relayerr.ProtocolError("gno: decode app hash: %v", err)
	}
	nextValHash, err := base64.StdEncoding.DecodeString(result.SignedHeader.Header.NextValidatorsHash)
	if err != nil {
		return nil, relayerr.ProtocolError("gno: decode next validators hash: %v", err)
	}
	return &Header{
		trusted:            trustedHeight,
		target:             targetHeight,
		appHash:            appHash,
		nextValidatorsHash: nextValHash,
		timestamp:          result.SignedHeader.Header.Time,
	}, nil
}
