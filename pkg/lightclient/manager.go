// Package lightclient creates and maintains a light client on one chain
// that tracks another: Create computes the initial ClientState and
// ConsensusState from the source and submits MsgCreateClient on the
// destination; Update advances the destination's view of the source to
// at least a target height; UpdateIfStale skips the round trip when the
// remote's last consensus state is still fresh; CheckEvidence compares a
// remote consensus state against the source's own header at that height.
//
// Grounded on the teacher's ConsensusHealthMonitor staleness-polling loop
// (pkg/consensus/health_monitor.go), generalized from "alert on stall" to
// "refresh when stale", and on the liteclient adapter's graceful-retry
// idiom in pkg/proof/liteclient_adapter.go.
package lightclient

import (
	"bytes"
	"context"
	"time"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/retry"
)

// Manager maintains a light client on dest tracking source.
type Manager struct {
	source chain.Client
	dest   chain.Client

	clientID       string
	trustingPeriod time.Duration // zero means NewClientState's 2/3-of-unbonding default
	retryCfg       retry.Config
}

// New builds a Manager for a light client on dest tracking source.
// clientID may be empty before Create runs; trustingPeriod of zero takes
// NewClientState's default.
func New(source, dest chain.Client, clientID string, trustingPeriod time.Duration) *Manager {
	return &Manager{
		source:         source,
		dest:           dest,
		clientID:       clientID,
		trustingPeriod: trustingPeriod,
		retryCfg:       retry.DefaultConfig(),
	}
}

// ClientID returns the client-id this Manager maintains, set by Create or
// by the client-id a prior Create already produced.
func (m *Manager) ClientID() string { return m.clientID }

// Create computes the initial ClientState and ConsensusState from source
// and submits MsgCreateClient on dest, recording the resulting client-id.
func (m *Manager) Create(ctx context.Context) (string, error) {
	unbonding, err := m.source.UnbondingPeriod(ctx)
	if err != nil {
		return "", err
	}
	latest, err := m.source.CurrentHeight(ctx)
	if err != nil {
		return "", err
	}
	header, err := m.source.BuildUpdateHeader(ctx, ibctypes.ZeroHeight, latest)
	if err != nil {
		return "", err
	}

	cs, err := ibctypes.NewClientState(m.source.ChainID(), time.Duration(unbonding), m.trustingPeriod, latest)
	if err != nil {
		return "", relayerr.ProtocolError("lightclient: create client state: %v", err)
	}
	consensus := &ibctypes.ConsensusState{
		Timestamp:          header.Timestamp(),
		Root:               ibctypes.MerkleRoot{Hash: header.AppHash()},
		NextValidatorsHash: header.NextValidatorsHash(),
	}

	clientID, _, err := m.dest.CreateClient(ctx, cs, consensus)
	if err != nil {
		return "", err
	}
	m.clientID = clientID
	return clientID, nil
}

// Update advances dest's view of source to at least height target. It is
// a no-op if the remote client is already at or beyond target and already
// holds a consensus state there.
func (m *Manager) Update(ctx context.Context, target ibctypes.Height) error {
	cs, err := m.dest.ClientState(ctx, m.clientID)
	if err != nil {
		return err
	}
	latest := cs.LatestHeight

	if latest.GTE(target) {
		if _, err := m.dest.ConsensusState(ctx, m.clientID, latest); err == nil {
			return nil
		}
	}

	targetHeader, err := m.fetchHeaderAtOrPast(ctx, target)
	if err != nil {
		return err
	}

	return retry.Do(ctx, m.retryCfg, relayerr.IsRetryable, func(ctx context.Context) error {
		_, err := m.dest.UpdateClient(ctx, m.clientID, targetHeader)
		return err
	})
}

// fetchHeaderAtOrPast builds source's update header anchored at the
// remote's current latestHeight, for some H' >= target, waiting a block
// on source if its current height hasn't reached target yet.
func (m *Manager) fetchHeaderAtOrPast(ctx context.Context, target ibctypes.Height) (chain.Header, error) {
	cs, err := m.dest.ClientState(ctx, m.clientID)
	if err != nil {
		return nil, err
	}
	trusted := cs.LatestHeight

	hPrime, err := m.source.CurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	for hPrime.LT(target) {
		if err := m.source.WaitOneBlock(ctx); err != nil {
			return nil, err
		}
		hPrime, err = m.source.CurrentHeight(ctx)
		if err != nil {
			return nil, err
		}
	}

	return m.source.BuildUpdateHeader(ctx, trusted, hPrime)
}

// UpdateIfStale refreshes the client only if the remote's last consensus
// state is older than maxAge relative to source's current time. It does
// not inspect either chain's kind: every source goes through the same
// path, and any error from ClientState, ConsensusState, CurrentTime or
// the subsequent Update is returned as is.
func (m *Manager) UpdateIfStale(ctx context.Context, maxAge time.Duration) error {
	cs, err := m.dest.ClientState(ctx, m.clientID)
	if err != nil {
		return err
	}
	consensus, err := m.dest.ConsensusState(ctx, m.clientID, cs.LatestHeight)
	if err != nil {
		return err
	}

	nowNanos, err := m.source.CurrentTime(ctx)
	if err != nil {
		return err
	}
	age := time.Unix(0, nowNanos).Sub(consensus.Timestamp)
	if age < maxAge {
		return nil
	}

	target, err := m.source.CurrentHeight(ctx)
	if err != nil {
		return err
	}
	return m.Update(ctx, target)
}

// CheckEvidence verifies that dest's consensus state at height matches
// source's own header at that height. A mismatch in either the app hash
// or the next-validators hash means the remote light client was updated
// with a header source never produced — a buggy counterparty or a fork —
// and is reported as a non-retryable protocol error, never auto-repaired.
func (m *Manager) CheckEvidence(ctx context.Context, height ibctypes.Height) error {
	consensus, err := m.dest.ConsensusState(ctx, m.clientID, height)
	if err != nil {
		return err
	}
	header, err := m.source.BuildUpdateHeader(ctx, height, height)
	if err != nil {
		return err
	}

	if !bytes.Equal(consensus.Root.Hash, header.AppHash()) {
		return relayerr.ProtocolError("lightclient: consensus evidence mismatch at height %s: app hash differs", height)
	}
	if !bytes.Equal(consensus.NextValidatorsHash, header.NextValidatorsHash()) {
		return relayerr.ProtocolError("lightclient: consensus evidence mismatch at height %s: next-validators hash differs", height)
	}
	return nil
}
