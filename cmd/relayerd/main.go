// Command relayerd is the thin CLI front-end over the relayer core: it
// parses flags, loads configuration, and dispatches to the Relayer
// Supervisor and its persistence/signing collaborators. Grounded on the
// teacher's main.go (stdlib flag parsing, signal.Notify/
// context.WithCancel graceful shutdown) — no cobra/viper, since the
// teacher's own go.mod never imports either directly.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/relaycore/ibc-relayer/pkg/config"
	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/signer"
	"github.com/relaycore/ibc-relayer/pkg/store"
	"github.com/relaycore/ibc-relayer/pkg/store/kv"
	"github.com/relaycore/ibc-relayer/pkg/store/postgres"
	"github.com/relaycore/ibc-relayer/pkg/supervisor"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "add-mnemonic":
		err = runAddMnemonic(args)
	case "add-gas-price":
		err = runAddGasPrice(args)
	case "add-path":
		err = runAddPath(args)
	case "relay":
		err = runRelay(args)
	case "dump-paths":
		err = runDumpPaths(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "relayerd: unknown command %q\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "relayerd: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: relayerd <command> [flags]

commands:
  add-mnemonic --chain-id C [--mnemonic ...] [--passphrase ...]
      Store a signing key for chain C, derived from a BIP-39 mnemonic.
      The mnemonic is read from --mnemonic, else the MNEMONIC env var,
      else a line on stdin — never a shell positional argument.
  add-gas-price --chain-id C "0.025uatom"
      Store the gas price for chain C.
  add-path --id ID --source A --source-url URL --destination B --destination-url URL
           --source-type tendermint|gno --destination-type tendermint|gno --ibc-version 1|2
           [--client-a ID] [--client-b ID] [--query-url-a URL] [--query-url-b URL]
      Persist a relay path.
  relay
      Run the relay loop until signalled.
  dump-paths [--format json|yaml]
      Print all persisted paths to stdout (default json).`)
}

// keyDir returns the directory signing keys are read from and persisted
// to. No spec env var names this, so it follows the teacher's own
// "default under the data directory, override if set" convention.
func keyDir() string {
	if d := os.Getenv("KEY_DIR"); d != "" {
		return d
	}
	return "./keys"
}

// openStore opens the Postgres backend when cfg.DatabaseURL is set,
// otherwise the KV file backend at cfg.DBFile.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return postgres.Open(ctx, cfg.DatabaseURL)
	}

	dir := filepath.Dir(cfg.DBFile)
	if dir == "" {
		dir = "."
	}
	name := strings.TrimSuffix(filepath.Base(cfg.DBFile), filepath.Ext(cfg.DBFile))
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBFile, err)
	}
	return kv.New(db), nil
}

func runAddMnemonic(args []string) error {
	fs := flag.NewFlagSet("add-mnemonic", flag.ExitOnError)
	chainID := fs.String("chain-id", "", "chain id to store the key under")
	mnemonicFlag := fs.String("mnemonic", "", "BIP-39 mnemonic (prefer MNEMONIC env var or stdin)")
	passphrase := fs.String("passphrase", "", "optional BIP-39 passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chainID == "" {
		return fmt.Errorf("add-mnemonic: --chain-id is required")
	}

	mnemonic := *mnemonicFlag
	if mnemonic == "" {
		mnemonic = os.Getenv("MNEMONIC")
	}
	if mnemonic == "" {
		fmt.Fprintln(os.Stderr, "enter mnemonic:")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			mnemonic = strings.TrimSpace(scanner.Text())
		}
	}
	if mnemonic == "" {
		return fmt.Errorf("add-mnemonic: mnemonic not supplied via --mnemonic, MNEMONIC, or stdin")
	}

	path := filepath.Join(keyDir(), *chainID+".hex")
	km, err := signer.FromMnemonic(*chainID, mnemonic, *passphrase, path)
	if err != nil {
		return err
	}
	log.Printf("add-mnemonic: stored key for chain %s (public key %x)", km.ChainID(), km.PublicKey())
	return nil
}

var gasPricePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([A-Za-z][A-Za-z0-9/]*)$`)

func parseGasPrice(raw string) (float64, string, error) {
	m := gasPricePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", fmt.Errorf("add-gas-price: %q is not a valid \"<amount><denom>\" gas price", raw)
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("add-gas-price: %q: %w", raw, err)
	}
	return amount, m[2], nil
}

func runAddGasPrice(args []string) error {
	fs := flag.NewFlagSet("add-gas-price", flag.ExitOnError)
	chainID := fs.String("chain-id", "", "chain id to store the gas price for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chainID == "" {
		return fmt.Errorf("add-gas-price: --chain-id is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf(`add-gas-price: expected exactly one "<amount><denom>" argument`)
	}

	amount, denom, err := parseGasPrice(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SetFee(ctx, ibctypes.ChainFee{ChainID: *chainID, GasPrice: amount, GasDenom: denom}); err != nil {
		return err
	}
	log.Printf("add-gas-price: stored %g%s for chain %s", amount, denom, *chainID)
	return nil
}

func runAddPath(args []string) error {
	fs := flag.NewFlagSet("add-path", flag.ExitOnError)
	id := fs.String("id", "", "path id (defaults to \"<source>-<destination>\")")
	source := fs.String("source", "", "source chain id")
	sourceURL := fs.String("source-url", "", "source chain RPC URL")
	sourceQueryURL := fs.String("query-url-a", "", "optional secondary query RPC for the source")
	sourceType := fs.String("source-type", "", "tendermint|gno")
	clientA := fs.String("client-a", "", "client/connection id addressing the destination from the source")
	destination := fs.String("destination", "", "destination chain id")
	destinationURL := fs.String("destination-url", "", "destination chain RPC URL")
	destinationQueryURL := fs.String("query-url-b", "", "optional secondary query RPC for the destination")
	destinationType := fs.String("destination-type", "", "tendermint|gno")
	clientB := fs.String("client-b", "", "client/connection id addressing the source from the destination")
	ibcVersion := fs.Int("ibc-version", 1, "1 (channels) or 2 (client-to-client)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pathID, err := uniquePathID(context.Background(), st, *id, *source, *destination)
	if err != nil {
		return err
	}

	path := ibctypes.RelayPath{
		ID:         pathID,
		ChainIDA:   *source,
		RPCA:       *sourceURL,
		QueryRPCA:  *sourceQueryURL,
		ChainIDB:   *destination,
		RPCB:       *destinationURL,
		QueryRPCB:  *destinationQueryURL,
		ChainTypeA: ibctypes.ClientKind(*sourceType),
		ChainTypeB: ibctypes.ClientKind(*destinationType),
		ClientA:    *clientA,
		ClientB:    *clientB,
		Version:    ibctypes.IBCVersion(*ibcVersion),
	}

	if err := st.AddPath(context.Background(), path); err != nil {
		return err
	}
	log.Printf("add-path: persisted path %s (%s <-> %s)", path.ID, path.ChainIDA, path.ChainIDB)
	return nil
}

// uniquePathID returns explicitID if set; otherwise it derives
// "<source>-<destination>" and, if that id already names a persisted
// path, disambiguates it with a short uuid suffix so two paths between
// the same chain pair (e.g. distinct client/connection pairs) don't
// collide.
func uniquePathID(ctx context.Context, st store.Store, explicitID, source, destination string) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}

	base := source + "-" + destination
	paths, err := st.ListPaths(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if p.ID == base {
			return base + "-" + uuid.New().String()[:8], nil
		}
	}
	return base, nil
}

func runDumpPaths(args []string) error {
	fs := flag.NewFlagSet("dump-paths", flag.ExitOnError)
	format := fs.String("format", "json", "json|yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	paths, err := st.ListPaths(context.Background())
	if err != nil {
		return err
	}

	switch *format {
	case "yaml":
		out, err := yaml.Marshal(paths)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(paths)
	default:
		return fmt.Errorf("dump-paths: unknown --format %q (want json or yaml)", *format)
	}
}

func runRelay(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	sup := supervisor.New(cfg, st, keyDir())

	ctx, cancel := context.WithCancel(context.Background())

	if err := sup.Start(ctx); err != nil {
		cancel()
		return err
	}
	log.Printf("relay: supervisor started (poll interval %s)", cfg.PollInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("relay: shutting down")
	cancel()
	if err := sup.Stop(); err != nil {
		return err
	}
	log.Printf("relay: stopped")
	return nil
}
