// Package store defines the persistence boundary the Relayer Supervisor
// and CLI depend on: relay path definitions, the low-water-mark Relayed
// Heights row per path, and per-chain gas pricing. Two concrete backends
// are provided (pkg/store/kv, pkg/store/postgres); the Supervisor and CLI
// depend only on these interfaces, grounded on the teacher's own
// interface-over-concrete-store split in pkg/ledger/store.go (LedgerStore
// over a bare KV interface) and pkg/database/repository_*.go (one
// repository type per table).
package store

import (
	"context"

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
)

// PathStore persists relay path definitions (the `relayPaths` table in
// §6). Paths are immutable once added; there is no Update operation.
type PathStore interface {
	AddPath(ctx context.Context, path ibctypes.RelayPath) error
	ListPaths(ctx context.Context) ([]ibctypes.RelayPath, error)
	GetPath(ctx context.Context, id string) (*ibctypes.RelayPath, error)
}

// HeightStore persists the Relayed Heights low-water mark per path (the
// `relayedHeights` table in §6). A missing row is equivalent to
// ibctypes.ZeroRelayedHeights.
type HeightStore interface {
	LoadHeights(ctx context.Context, pathID string) (ibctypes.RelayedHeights, error)
	SaveHeights(ctx context.Context, heights ibctypes.RelayedHeights) error
}

// FeeStore persists per-chain gas pricing (the `chainFees` table in §6).
type FeeStore interface {
	SetFee(ctx context.Context, fee ibctypes.ChainFee) error
	GetFee(ctx context.Context, chainID string) (*ibctypes.ChainFee, error)
}

// Store bundles all three persistence concerns plus lifecycle, the shape
// the Supervisor actually holds a reference to.
type Store interface {
	PathStore
	HeightStore
	FeeStore
	Close() error
}
