// Package postgres implements pkg/store's interfaces over PostgreSQL, for
// deployments that set DATABASE_URL instead of (or alongside) DB_FILE.
//
// Grounded on the teacher's pkg/database/client.go (connection pooling,
// embed.FS migrations, PingContext verification on open) and
// pkg/database/repository_anchor.go's repository-over-parameterized-query
// style, generalized from one table per domain concept to the three
// relayer persistence tables in §6.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq" // postgres driver

	"github.com/relaycore/ibc-relayer/pkg/ibctypes"
	"github.com/relaycore/ibc-relayer/pkg/relayerr"
	"github.com/relaycore/ibc-relayer/pkg/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a store.Store backed by a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// Open opens a connection pool against databaseURL, verifies connectivity,
// and runs embedded migrations before returning.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, relayerr.ConfigError("postgres store: DATABASE_URL must not be empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, relayerr.ConfigError("postgres store: open: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, relayerr.NetworkError(fmt.Errorf("postgres store: ping: %w", err))
	}
	s := &Store{db: db}
	if err := s.migrateUp(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY)`); err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: create schema_migrations: %v", err))
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return relayerr.InvariantViolation("postgres store: read embedded migrations: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&applied); err != nil {
			return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: check migration %s: %v", name, err))
		}
		if applied {
			continue
		}
		contents, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return relayerr.InvariantViolation("postgres store: read migration %s: %v", name, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: begin migration %s: %v", name, err))
		}
		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			tx.Rollback()
			return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: apply migration %s: %v", name, err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: record migration %s: %v", name, err))
		}
		if err := tx.Commit(); err != nil {
			return relayerr.ChainExecutionError(fmt.Sprintf("postgres store: commit migration %s: %v", name, err))
		}
	}
	return nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddPath(ctx context.Context, path ibctypes.RelayPath) error {
	if err := path.Validate(); err != nil {
		return relayerr.ConfigError("invalid relay path: %v", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_paths (
			id, chain_id_a, rpc_a, query_rpc_a, chain_id_b, rpc_b, query_rpc_b,
			chain_type_a, chain_type_b, client_a, client_b, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`,
		path.ID, path.ChainIDA, path.RPCA, path.QueryRPCA, path.ChainIDB, path.RPCB, path.QueryRPCB,
		string(path.ChainTypeA), string(path.ChainTypeB), path.ClientA, path.ClientB, int(path.Version),
	)
	if err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("insert relay path %s: %v", path.ID, err))
	}
	return nil
}

func (s *Store) ListPaths(ctx context.Context) ([]ibctypes.RelayPath, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain_id_a, rpc_a, query_rpc_a, chain_id_b, rpc_b, query_rpc_b,
		       chain_type_a, chain_type_b, client_a, client_b, version
		FROM relay_paths ORDER BY id`)
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("list relay paths: %v", err))
	}
	defer rows.Close()

	var out []ibctypes.RelayPath
	for rows.Next() {
		var p ibctypes.RelayPath
		var chainTypeA, chainTypeB string
		var version int
		if err := rows.Scan(&p.ID, &p.ChainIDA, &p.RPCA, &p.QueryRPCA, &p.ChainIDB, &p.RPCB, &p.QueryRPCB,
			&chainTypeA, &chainTypeB, &p.ClientA, &p.ClientB, &version); err != nil {
			return nil, relayerr.InvariantViolation("scan relay path row: %v", err)
		}
		p.ChainTypeA = ibctypes.ClientKind(chainTypeA)
		p.ChainTypeB = ibctypes.ClientKind(chainTypeB)
		p.Version = ibctypes.IBCVersion(version)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPath(ctx context.Context, id string) (*ibctypes.RelayPath, error) {
	var p ibctypes.RelayPath
	var chainTypeA, chainTypeB string
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain_id_a, rpc_a, query_rpc_a, chain_id_b, rpc_b, query_rpc_b,
		       chain_type_a, chain_type_b, client_a, client_b, version
		FROM relay_paths WHERE id = $1`, id,
	).Scan(&p.ID, &p.ChainIDA, &p.RPCA, &p.QueryRPCA, &p.ChainIDB, &p.RPCB, &p.QueryRPCB,
		&chainTypeA, &chainTypeB, &p.ClientA, &p.ClientB, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("get relay path %s: %v", id, err))
	}
	p.ChainTypeA = ibctypes.ClientKind(chainTypeA)
	p.ChainTypeB = ibctypes.ClientKind(chainTypeB)
	p.Version = ibctypes.IBCVersion(version)
	return &p, nil
}

func (s *Store) LoadHeights(ctx context.Context, pathID string) (ibctypes.RelayedHeights, error) {
	var h ibctypes.RelayedHeights
	var packetA, packetB, ackA, ackB []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT packet_height_a, packet_height_b, ack_height_a, ack_height_b
		FROM relayed_heights WHERE relay_path_id = $1`, pathID,
	).Scan(&packetA, &packetB, &ackA, &ackB)
	if err == sql.ErrNoRows {
		return ibctypes.ZeroRelayedHeights(pathID), nil
	}
	if err != nil {
		return ibctypes.RelayedHeights{}, relayerr.ChainExecutionError(fmt.Sprintf("load relayed heights %s: %v", pathID, err))
	}
	h.RelayPathID = pathID
	for dst, raw := range map[*ibctypes.Height][]byte{&h.PacketHeightA: packetA, &h.PacketHeightB: packetB, &h.AckHeightA: ackA, &h.AckHeightB: ackB} {
		if err := json.Unmarshal(raw, dst); err != nil {
			return ibctypes.RelayedHeights{}, relayerr.InvariantViolation("unmarshal height column for %s: %v", pathID, err)
		}
	}
	return h, nil
}

func (s *Store) SaveHeights(ctx context.Context, heights ibctypes.RelayedHeights) error {
	packetA, err := json.Marshal(heights.PacketHeightA)
	if err != nil {
		return relayerr.InvariantViolation("marshal packetHeightA: %v", err)
	}
	packetB, err := json.Marshal(heights.PacketHeightB)
	if err != nil {
		return relayerr.InvariantViolation("marshal packetHeightB: %v", err)
	}
	ackA, err := json.Marshal(heights.AckHeightA)
	if err != nil {
		return relayerr.InvariantViolation("marshal ackHeightA: %v", err)
	}
	ackB, err := json.Marshal(heights.AckHeightB)
	if err != nil {
		return relayerr.InvariantViolation("marshal ackHeightB: %v", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relayed_heights (relay_path_id, packet_height_a, packet_height_b, ack_height_a, ack_height_b)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (relay_path_id) DO UPDATE SET
			packet_height_a = EXCLUDED.packet_height_a,
			packet_height_b = EXCLUDED.packet_height_b,
			ack_height_a = EXCLUDED.ack_height_a,
			ack_height_b = EXCLUDED.ack_height_b`,
		heights.RelayPathID, packetA, packetB, ackA, ackB,
	)
	if err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("save relayed heights %s: %v", heights.RelayPathID, err))
	}
	return nil
}

func (s *Store) SetFee(ctx context.Context, fee ibctypes.ChainFee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chain_fees (chain_id, gas_price, gas_denom) VALUES ($1,$2,$3)
		ON CONFLICT (chain_id) DO UPDATE SET gas_price = EXCLUDED.gas_price, gas_denom = EXCLUDED.gas_denom`,
		fee.ChainID, fee.GasPrice, fee.GasDenom,
	)
	if err != nil {
		return relayerr.ChainExecutionError(fmt.Sprintf("set chain fee %s: %v", fee.ChainID, err))
	}
	return nil
}

func (s *Store) GetFee(ctx context.Context, chainID string) (*ibctypes.ChainFee, error) {
	var f ibctypes.ChainFee
	f.ChainID = chainID
	err := s.db.QueryRowContext(ctx, `SELECT gas_price, gas_denom FROM chain_fees WHERE chain_id = $1`, chainID).
		Scan(&f.GasPrice, &f.GasDenom)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, relayerr.ChainExecutionError(fmt.Sprintf("get chain fee %s: %v", chainID, err))
	}
	return &f, nil
}
