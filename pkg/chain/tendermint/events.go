package tendermint

import (
	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
)

func toEventAttrs(attrs []abcitypes.EventAttribute) []chain.EventAttr {
	out := make([]chain.EventAttr, len(attrs))
	for i, a := range attrs {
		out[i] = chain.EventAttr{Key: a.Key, Value: a.Value}
	}
	return out
}

func heightAt(h int64) ibctypes.Height {
	return ibctypes.NewHeight(0, uint64(h))
}

func wrapNetworkError(err error) error {
	return relayerr.NetworkError(err)
}
