// Package supervisor holds the configured relay paths, builds the Chain
// Clients/Endpoints/Links they need, and runs the poll loop that drives
// every live Link's relay iteration until asked to stop.
//
// Grounded on the teacher's main.go orchestration (component wiring
// order, signal.Notify/context.WithCancel graceful shutdown) and
// pkg/anchor/scheduler.go's ticker-driven batchCheckLoop ("errors caught
// and logged, loop continues").
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/relaycore/ibc-relayer/pkg/chain"
	"github.com/relaycore/ibc-relayer/pkg/chain/gno"
	"github.com/relaycore/ibc-relayer/pkg/chain/tendermint"
	"github.com/relaycore/ibc-relayer/pkg/chain/txcodec"
	"github.com/relaycore/ibc-relayer/pkg/config"
	"github.com/relaycore/ibc-relayer/pkg/endpoint"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/lightclient"
	"github.com/relaycore/ibc-relayer/pkg/link"
	"github.com/relaycore/ibc-relayer/pkg/proof"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/signer"
	"github.com/relaycore/ibc-relayer/pkg/store"
)

// chainClient is what a side needs beyond the public chain.Client
// surface: both concrete drivers also implement proof.Prover directly,
// but that capability isn't part of the chain.Client interface itself.
type chainClient interface {
	chain.Client
	proof.Prover
}

// proofStoreKey is the IAVL substore IBC module state lives under.
const proofStoreKey = "ibc"

// liveLink is one instantiated path: its Link, the light-client Managers
// that keep each side's tracked client fresh independent of packet
// traffic, and the Chain Clients that must be disconnected on Stop.
type liveLink struct {
	pathID    string
	link      *link.Link
	clientOnB *lightclient.Manager // lives on B, tracks A; refreshed against cfg.MaxAgeDest
	clientOnA *lightclient.Manager // lives on A, tracks B; refreshed against cfg.MaxAgeSrc
	clients   []chainClient
}

// Supervisor maintains the live set of relay paths and drives their
// relay loop. Build one with New, add paths with AddPath, then Start.
type Supervisor struct {
	cfg      *config.Config
	store    store.Store
	keyDir   string
	logger   *log.Logger

	mu       sync.Mutex
	links    map[string]*liveLink // keyed by RelayPath.ID, built lazily by Init
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Supervisor persisting to st and reading/generating signing
// keys under keyDir (one hex file per chain-id, via pkg/signer).
func New(cfg *config.Config, st store.Store, keyDir string) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		store:  st,
		keyDir: keyDir,
		logger: log.New(os.Stdout, "[supervisor] ", log.LstdFlags),
		links:  make(map[string]*liveLink),
	}
}

// AddPath validates and persists a relay path row; a subsequent Init call
// picks it up and instantiates its Link.
func (s *Supervisor) AddPath(ctx context.Context, path ibctypes.RelayPath) error {
	if err := path.Validate(); err != nil {
		return relayerr.ConfigError("supervisor: %v", err)
	}
	return s.store.AddPath(ctx, path)
}

// Init builds a Chain Client pair, Endpoints, light-client Managers, a
// Proof Assembler per side, and a Link for every persisted path not
// already in the live set. Already-instantiated paths are left alone, so
// repeated calls (e.g. from the poll loop) are cheap.
func (s *Supervisor) Init(ctx context.Context) error {
	paths, err := s.store.ListPaths(ctx)
	if err != nil {
		return err
	}

	for _, p := range paths {
		s.mu.Lock()
		_, exists := s.links[p.ID]
		s.mu.Unlock()
		if exists {
			continue
		}

		ll, err := s.buildLink(ctx, p)
		if err != nil {
			s.logger.Printf("path %s: init failed: %v", p.ID, err)
			continue
		}

		s.mu.Lock()
		s.links[p.ID] = ll
		s.mu.Unlock()
		s.logger.Printf("path %s: instantiated (%s <-> %s)", p.ID, p.ChainIDA, p.ChainIDB)
	}
	return nil
}

func (s *Supervisor) buildLink(ctx context.Context, p ibctypes.RelayPath) (*liveLink, error) {
	clientA, err := s.buildChainClient(ctx, p.ChainIDA, p.RPCA, p.ChainTypeA)
	if err != nil {
		return nil, fmt.Errorf("chain client A: %w", err)
	}
	clientB, err := s.buildChainClient(ctx, p.ChainIDB, p.RPCB, p.ChainTypeB)
	if err != nil {
		return nil, fmt.Errorf("chain client B: %w", err)
	}

	// RelayPath carries one addressing identifier per side (ClientA/
	// ClientB); for a v1 path that identifier is also the connection-id,
	// so it's threaded into both endpoint.New parameters. This keeps
	// Endpoint's own version inference (connectionID present => v1) in
	// sync with the path's explicit Version field.
	connA, connB := "", ""
	if p.Version == ibctypes.IBCVersionChannels {
		connA, connB = p.ClientA, p.ClientB
	}
	epA, err := endpoint.New(clientA, p.ClientA, connA)
	if err != nil {
		return nil, fmt.Errorf("endpoint A: %w", err)
	}
	epB, err := endpoint.New(clientB, p.ClientB, connB)
	if err != nil {
		return nil, fmt.Errorf("endpoint B: %w", err)
	}

	clientOnB := lightclient.New(clientA, clientB, p.ClientB, 0)
	clientOnA := lightclient.New(clientB, clientA, p.ClientA, 0)

	proverA := proof.NewAssembler(clientA, proofStoreKey)
	proverB := proof.NewAssembler(clientB, proofStoreKey)

	l := link.New(epA, epB, proverA, proverB, clientOnB, clientOnA, s.cfg.EstimatedIndexerTime, s.cfg.EstimatedIndexerTime)

	return &liveLink{
		pathID:    p.ID,
		link:      l,
		clientOnB: clientOnB,
		clientOnA: clientOnA,
		clients:   []chainClient{clientA, clientB},
	}, nil
}

func (s *Supervisor) buildChainClient(ctx context.Context, chainID, rpcURL string, kind ibctypes.ClientKind) (chainClient, error) {
	keyPath := filepath.Join(s.keyDir, chainID+".hex")
	key, err := signer.Load(chainID, keyPath)
	if err != nil {
		return nil, err
	}
	codec := txcodec.New(key)

	switch kind {
	case ibctypes.ClientKindTendermint:
		logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("chain", chainID)
		return tendermint.New(ctx, chainID, rpcURL, codec, logger)
	case ibctypes.ClientKindGno:
		return gno.New(ctx, chainID, rpcURL, codec)
	default:
		return nil, relayerr.ConfigError("supervisor: unknown chain kind %q for chain %s", kind, chainID)
	}
}

// Start launches the poll loop as a goroutine and returns immediately.
// Each iteration calls Init (to pick up any newly added paths), then runs
// every live Link's relay iteration, persisting its advanced heights.
// A single link's failure is logged and never stops the loop or the
// other links.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return relayerr.InvariantViolation("supervisor: already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Init(ctx); err != nil {
			s.logger.Printf("init: %v", err)
		}
		s.runIteration(ctx)

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) runIteration(ctx context.Context) {
	s.mu.Lock()
	links := make([]*liveLink, 0, len(s.links))
	for _, ll := range s.links {
		links = append(links, ll)
	}
	s.mu.Unlock()

	for _, ll := range links {
		// Stale-client refresh runs independent of packet traffic: a path
		// with nothing pending still needs its light clients kept within
		// MaxAgeDest/MaxAgeSrc, or CheckEvidence has nothing recent to
		// compare against.
		if err := ll.clientOnB.UpdateIfStale(ctx, s.cfg.MaxAgeDest); err != nil {
			s.logger.Printf("path %s: update client on B: %v", ll.pathID, err)
		}
		if err := ll.clientOnA.UpdateIfStale(ctx, s.cfg.MaxAgeSrc); err != nil {
			s.logger.Printf("path %s: update client on A: %v", ll.pathID, err)
		}

		heights, err := s.store.LoadHeights(ctx, ll.pathID)
		if err != nil {
			s.logger.Printf("path %s: load heights: %v", ll.pathID, err)
			continue
		}

		newHeights, _, err := ll.link.CheckAndRelayPacketsAndAcks(ctx, heights, s.cfg.TimeoutBlocks, int64(s.cfg.TimeoutSeconds/time.Second))
		if err != nil {
			s.logger.Printf("path %s: relay iteration: %v", ll.pathID, err)
			continue
		}

		if err := s.store.SaveHeights(ctx, newHeights); err != nil {
			s.logger.Printf("path %s: save heights: %v", ll.pathID, err)
		}
	}
}

// Stop marks the loop as no longer running, waits for its current
// iteration to finish, disconnects every Chain Client, and closes the
// persistence store.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	links := make([]*liveLink, 0, len(s.links))
	for _, ll := range s.links {
		links = append(links, ll)
	}
	s.mu.Unlock()

	for _, ll := range links {
		for _, c := range ll.clients {
			if err := c.Disconnect(); err != nil {
				s.logger.Printf("path %s: disconnect: %v", ll.pathID, err)
			}
		}
	}

	return s.store.Close()
}
