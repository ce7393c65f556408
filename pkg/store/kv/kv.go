// Package kv implements pkg/store's interfaces over a CometBFT-DB handle,
// for the embedded/single-binary deployment selected by DB_FILE (§6).
//
// Grounded on the teacher's pkg/ledger/store.go key layout (string-prefixed
// namespaces, JSON-encoded rows) and pkg/kvdb/adapter.go (wrapping dbm.DB
// behind a narrow interface, treating a missing key as "not present"
// rather than an error).
package kv

import (
	"context"
	"encoding/json"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/store"
)

var (
	keyPathIndex    = []byte("relayer:paths") // -> JSON []string of path IDs
	keyPathPrefix   = "relayer:path:"
	keyHeightPrefix = "relayer:heights:"
	keyFeePrefix    = "relayer:fee:"
)

func pathKey(id string) []byte   { return []byte(keyPathPrefix + id) }
func heightKey(id string) []byte { return []byte(keyHeightPrefix + id) }
func feeKey(chainID string) []byte {
	return []byte(keyFeePrefix + chainID)
}

// Store is a store.Store backed by a CometBFT-DB handle (goleveldb,
// badgerdb, memdb, ... any dbm.DB implementation).
type Store struct {
	db dbm.DB
}

// New wraps an already-opened dbm.DB. The caller owns opening; Close
// closes it.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddPath(ctx context.Context, path ibctypes.RelayPath) error {
	if err := path.Validate(); err != nil {
		return relayerr.ConfigError("invalid relay path: %v", err)
	}
	b, err := json.Marshal(path)
	if err != nil {
		return relayerr.InvariantViolation("marshal relay path: %v", err)
	}
	if err := s.db.SetSync(pathKey(path.ID), b); err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("persist relay path: %v", err))
	}

	ids, err := s.pathIndex()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == path.ID {
			return nil
		}
	}
	ids = append(ids, path.ID)
	idxBytes, err := json.Marshal(ids)
	if err != nil {
		return relayerr.InvariantViolation("marshal path index: %v", err)
	}
	if err := s.db.SetSync(keyPathIndex, idxBytes); err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("persist path index: %v", err))
	}
	return nil
}

func (s *Store) pathIndex() ([]string, error) {
	raw, err := s.db.Get(keyPathIndex)
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("read path index: %v", err))
	}
	if raw == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, relayerr.InvariantViolation("unmarshal path index: %v", err)
	}
	return ids, nil
}

func (s *Store) ListPaths(ctx context.Context) ([]ibctypes.RelayPath, error) {
	ids, err := s.pathIndex()
	if err != nil {
		return nil, err
	}
	out := make([]ibctypes.RelayPath, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPath(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) GetPath(ctx context.Context, id string) (*ibctypes.RelayPath, error) {
	raw, err := s.db.Get(pathKey(id))
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("read relay path %s: %v", id, err))
	}
	if raw == nil {
		return nil, nil
	}
	var p ibctypes.RelayPath
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, relayerr.InvariantViolation("unmarshal relay path %s: %v", id, err)
	}
	return &p, nil
}

func (s *Store) LoadHeights(ctx context.Context, pathID string) (ibctypes.RelayedHeights, error) {
	raw, err := s.db.Get(heightKey(pathID))
	if err != nil {
		return ibctypes.RelayedHeights{}, relayerr.ChainExecutionError(fmt.Sprintf("read relayed heights %s: %v", pathID, err))
	}
	if raw == nil {
		return ibctypes.ZeroRelayedHeights(pathID), nil
	}
	var h ibctypes.RelayedHeights
	if err := json.Unmarshal(raw, &h); err != nil {
		return ibctypes.RelayedHeights{}, relayerr.InvariantViolation("unmarshal relayed heights %s: %v", pathID, err)
	}
	return h, nil
}

func (s *Store) SaveHeights(ctx context.Context, heights ibctypes.RelayedHeights) error {
	b, err := json.Marshal(heights)
	if err != nil {
		return relayerr.InvariantViolation("marshal relayed heights: %v", err)
	}
	if err := s.db.SetSync(heightKey(heights.RelayPathID), b); err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("persist relayed heights: %v", err))
	}
	return nil
}

func (s *Store) SetFee(ctx context.Context, fee ibctypes.ChainFee) error {
	b, err := json.Marshal(fee)
	if err != nil {
		return relayerr.InvariantViolation("marshal chain fee: %v", err)
	}
	if err := s.db.SetSync(feeKey(fee.ChainID), b); err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("persist chain fee: %v", err))
	}
	return nil
}

func (s *Store) GetFee(ctx context.Context, chainID string) (*ibctypes.ChainFee, error) {
	raw, err := s.db.Get(feeKey(chainID))
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("read chain fee %s: %v", chainID, err))
	}
	if raw == nil {
		return nil, nil
	}
	var f ibctypes.ChainFee
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, relayerr.InvariantViolation("unmarshal chain fee %s: %v", chainID, err)
	}
	return &f, nil
}
