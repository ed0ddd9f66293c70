package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS meta (
	k INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	name TEXT PRIMARY KEY,
	ord  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subnets (
	cidr TEXT PRIMARY KEY,
	ord  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_nodes (
	"user"      TEXT NOT NULL,
	feature_idx INTEGER NOT NULL,
	node        TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	PRIMARY KEY ("user", feature_idx, node)
);

CREATE TABLE IF NOT EXISTS feature_edges (
	"user"      TEXT NOT NULL,
	feature_idx INTEGER NOT NULL,
	node        TEXT NOT NULL,
	neighbor    TEXT NOT NULL,
	similarity  DOUBLE PRECISION NOT NULL,
	ord         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feature_edges_lookup
	ON feature_edges("user", feature_idx, node, ord);

CREATE TABLE IF NOT EXISTS requests (
	"user"    TEXT NOT NULL,
	domain    TEXT NOT NULL,
	ord       INTEGER NOT NULL,
	timestamp BIGINT NOT NULL,
	method    TEXT NOT NULL,
	target    TEXT NOT NULL,
	status    INTEGER NOT NULL,
	bytes_in  BIGINT NOT NULL,
	bytes_out BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_lookup ON requests("user", domain, ord);
`

// PostgresStore is a GraphStore backed by Postgres, for deployments
// where several stateless query servers share one batch output.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to graph store: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// GetUserGraphs implements GraphStore.
func (s *PostgresStore) GetUserGraphs(ctx context.Context, user string) (FeatureGraphBundle, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM users WHERE name = $1`, user).Scan(&count); err != nil {
		return nil, fmt.Errorf("checking user %q: %w", user, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}

	domains := make(map[string]*domainmodel.Domain)
	named := func(name string) *domainmodel.Domain {
		d, ok := domains[name]
		if !ok {
			d = domainmodel.NewDomain(name, user)
			domains[name] = d
		}
		return d
	}

	nodeRows, err := s.pool.Query(ctx,
		`SELECT feature_idx, node FROM feature_nodes WHERE "user" = $1 ORDER BY feature_idx, ord`, user)
	if err != nil {
		return nil, fmt.Errorf("loading nodes for %q: %w", user, err)
	}
	bundles := make(map[int]*FeatureGraph)
	maxFeature := -1
	for nodeRows.Next() {
		var featureIdx int
		var node string
		if err := nodeRows.Scan(&featureIdx, &node); err != nil {
			nodeRows.Close()
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		g, ok := bundles[featureIdx]
		if !ok {
			g = graph.New[*domainmodel.Domain](graph.KMax)
			bundles[featureIdx] = g
		}
		g.Put(named(node), nil)
		if featureIdx > maxFeature {
			maxFeature = featureIdx
		}
	}
	nodeRows.Close()
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("reading node rows: %w", err)
	}

	edgeRows, err := s.pool.Query(ctx,
		`SELECT feature_idx, node, neighbor, similarity FROM feature_edges WHERE "user" = $1 ORDER BY feature_idx, node, ord`, user)
	if err != nil {
		return nil, fmt.Errorf("loading edges for %q: %w", user, err)
	}
	pending := make(map[int]map[string]graph.NeighborList[*domainmodel.Domain])
	for edgeRows.Next() {
		var featureIdx int
		var node, neighbor string
		var similarity float64
		if err := edgeRows.Scan(&featureIdx, &node, &neighbor, &similarity); err != nil {
			edgeRows.Close()
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		byNode, ok := pending[featureIdx]
		if !ok {
			byNode = make(map[string]graph.NeighborList[*domainmodel.Domain])
			pending[featureIdx] = byNode
		}
		nl := byNode[node]
		nl.Add(graph.Neighbor[*domainmodel.Domain]{Node: named(neighbor), Similarity: similarity})
		byNode[node] = nl
	}
	edgeRows.Close()
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("reading edge rows: %w", err)
	}

	if err := s.loadRequests(ctx, user, domains); err != nil {
		return nil, err
	}

	bundle := make(FeatureGraphBundle, maxFeature+1)
	for idx := 0; idx <= maxFeature; idx++ {
		g, ok := bundles[idx]
		if !ok {
			g = graph.New[*domainmodel.Domain](graph.KMax)
		}
		for node, nl := range pending[idx] {
			g.Put(named(node), nl)
		}
		bundle[idx] = g
	}
	return bundle, nil
}

func (s *PostgresStore) loadRequests(ctx context.Context, user string, domains map[string]*domainmodel.Domain) error {
	rows, err := s.pool.Query(ctx,
		`SELECT domain, timestamp, method, target, status, bytes_in, bytes_out
		 FROM requests WHERE "user" = $1 ORDER BY domain, ord`, user)
	if err != nil {
		return fmt.Errorf("loading requests for %q: %w", user, err)
	}
	defer rows.Close()

	for rows.Next() {
		var domain string
		var req domainmodel.Request
		req.Client = user
		if err := rows.Scan(&domain, &req.Timestamp, &req.Method, &req.Target,
			&req.Status, &req.BytesIn, &req.BytesOut); err != nil {
			return fmt.Errorf("scanning request row: %w", err)
		}
		d, ok := domains[domain]
		if !ok {
			d = domainmodel.NewDomain(domain, user)
			domains[domain] = d
		}
		d.Add(req)
	}
	return rows.Err()
}

// GetAllUsers implements GraphStore.
func (s *PostgresStore) GetAllUsers(ctx context.Context) ([]string, error) {
	return s.orderedNames(ctx, `SELECT name FROM users ORDER BY ord`)
}

// GetAllSubnets implements GraphStore.
func (s *PostgresStore) GetAllSubnets(ctx context.Context) ([]string, error) {
	return s.orderedNames(ctx, `SELECT cidr FROM subnets ORDER BY ord`)
}

func (s *PostgresStore) orderedNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetK implements GraphStore.
func (s *PostgresStore) GetK(ctx context.Context) (int, error) {
	var k int
	err := s.pool.QueryRow(ctx, `SELECT k FROM meta LIMIT 1`).Scan(&k)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("store: meta table empty, k was never recorded")
	}
	if err != nil {
		return 0, fmt.Errorf("reading k: %w", err)
	}
	return k, nil
}

// Close implements GraphStore.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
