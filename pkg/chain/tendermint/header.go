package tendermint

import (
	"context"
	"time"

	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

// Header is the Tendermint light-client update header: the signed header
// and validator set at the target height, plus the validator set the
// counterparty light client already trusts (the next-validators of the
// last header it accepted), per the validator-set-driven update the
// Tendermint light client protocol requires.
type Header struct {
	SignedHeader      *cmttypes.SignedHeader
	ValidatorSet      *cmttypes.ValidatorSet
	Trusted           ibctypes.Height
	TrustedValidators *cmttypes.ValidatorSet
}

func (h *Header) TrustedHeight() ibctypes.Height { return h.Trusted }

func (h *Header) TargetHeight() ibctypes.Height {
	return ibctypes.NewHeight(0, uint64(h.SignedHeader.Height))
}

func (h *Header) AppHash() []byte { return h.SignedHeader.AppHash }

func (h *Header) NextValidatorsHash() []byte { return h.SignedHeader.NextValidatorsHash }

func (h *Header) Timestamp() time.Time { return h.SignedHeader.Time }

// BuildUpdateHeader fetches the signed header and validator set at
// targetHeight, and the validator set at trustedHeight+1 (the
// next-validators of the last header the counterparty already trusts,
// which the light client enforces must equal the new header's
// TrustedValidators).
func (c *Client) BuildUpdateHeader(ctx context.Context, trustedHeight, targetHeight ibctypes.Height) (chain.Header, error) {
	h := int64(targetHeight.RevisionHeight)
	commit, err := c.rpc.Commit(ctx, &h)
	if err != nil {
		return nil, relayerr.NetworkError(err)
	}
	valSet, err := c.fetchValidatorSet(ctx, int64(targetHeight.RevisionHeight))
	if err != nil {
		return nil, err
	}
	trustedVals, err := c.fetchValidatorSet(ctx, int64(trustedHeight.RevisionHeight)+1)
	if err != nil {
		return nil, err
	}
	return &Header{
		SignedHeader:      &commit.SignedHeader,
		ValidatorSet:      valSet,
		Trusted:           trustedHeight,
		TrustedValidators: trustedVals,
	}, nil
}

// fetchValidatorSet pages through the Validators RPC call to recover the
// full validator set at height; 100-validator pages comfortably cover any
// real counterparty validator set in a handful of round trips.
func (c *Client) fetchValidatorSet(ctx context.Context, height int64) (*cmttypes.ValidatorSet, error) {
	const perPage = 100
	var validators []*cmttypes.Validator
	for page := 1; ; page++ {
		p, pp := page, perPage
		res, err := c.rpc.Validators(ctx, &height, &p, &pp)
		if err != nil {
			return nil, relayerr.NetworkError(err)
		}
		validators = append(validators, res.Validators...)
		if len(validators) >= res.Total {
			break
		}
	}
	return cmttypes.NewValidatorSet(validators), nil
}
