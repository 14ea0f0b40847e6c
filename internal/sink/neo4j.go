package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"

	"github.com/refgraph/refgraph/internal/entity"
	"github.com/refgraph/refgraph/internal/graph"
)

// Neo4jConfig carries the connection settings for a Neo4j sink. Zero
// User defaults to "neo4j", zero Database to the server default, zero
// Timeout to 10s. WritesPerSecond throttles batch queries when
// positive.
type Neo4jConfig struct {
	URI             string
	User            string
	Password        string
	Database        string
	Timeout         time.Duration
	WritesPerSecond float64
}

// Neo4j writes batches through the Bolt driver. One query per batch:
// UNWIND over the batch parameter, merged by identity key.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	limiter  *rate.Limiter
	log      *log.Logger
}

// OpenNeo4j connects, verifies connectivity, and returns the sink.
// A server that cannot be reached fails here, before any file is read.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig, logger *log.Logger) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("opening graph store: no URI configured")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("initializing driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying connectivity to %s: %w", cfg.URI, err)
	}

	s := &Neo4j{
		driver:   driver,
		database: cfg.Database,
		log:      logger,
	}
	if cfg.WritesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), 1)
	}
	return s, nil
}

func (s *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

func (s *Neo4j) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// EnsureSchema creates one uniqueness constraint per node label, best
// effort: a server where the user lacks schema privileges logs a
// warning and continues, since MERGE stays correct without the
// constraints (only slower).
func (s *Neo4j) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, q := range constraintStatements() {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			s.log.Warn("constraint setup failed, continuing", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
	return nil
}

func constraintStatements() []string {
	stmts := make([]string, 0, len(entity.Kinds))
	for _, k := range entity.Kinds {
		label := k.Label()
		stmts = append(stmts, fmt.Sprintf(
			`CREATE CONSTRAINT %s_key_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.key IS UNIQUE`,
			strings.ToLower(label), label))
	}
	return stmts
}

// Clear removes every node and relationship.
func (s *Neo4j) Clear(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("clearing graph: %w", err)
	}
	return nil
}

// WriteNodes merges one batch of same-label nodes. first_imported is
// stamped on creation only, so re-running an import never rewrites it.
func (s *Neo4j) WriteNodes(ctx context.Context, label string, nodes []graph.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	if err := s.wait(ctx); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	batch := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		props := make(map[string]any, len(n.Props)+1)
		for k, v := range n.Props {
			props[k] = v
		}
		props["name"] = n.Display
		batch = append(batch, map[string]any{
			"key":            n.Key,
			"props":          props,
			"first_imported": now,
		})
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, nodeUpsertQuery(label), map[string]any{"batch": batch})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// nodeUpsertQuery merges by key and overlays properties. Labels come
// from a fixed enum, never from input.
func nodeUpsertQuery(label string) string {
	return fmt.Sprintf(`UNWIND $batch AS row
MERGE (n:%s {key: row.key})
ON CREATE SET n.first_imported = row.first_imported
SET n += row.props`, label)
}

// WriteEdges merges one batch of same-kind relationships. Endpoints
// are matched, not merged: the builder emits a node upsert for every
// endpoint and the writer flushes nodes first, so a missing endpoint
// means its node batch failed and the edge must not fabricate a ghost
// key-only node in its place.
func (s *Neo4j) WriteEdges(ctx context.Context, kind graph.EdgeKind, edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	if err := s.wait(ctx); err != nil {
		return err
	}

	batch := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		batch = append(batch, map[string]any{
			"source_key": e.SourceKey,
			"target_key": e.TargetKey,
		})
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, edgeUpsertQuery(kind, edges[0].SourceLabel, edges[0].TargetLabel), map[string]any{"batch": batch})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// edgeUpsertQuery assumes every edge of one kind shares endpoint
// labels, which holds because the kind fixes both ends.
func edgeUpsertQuery(kind graph.EdgeKind, sourceLabel, targetLabel string) string {
	return fmt.Sprintf(`UNWIND $batch AS row
MATCH (a:%s {key: row.source_key})
MATCH (b:%s {key: row.target_key})
MERGE (a)-[:%s]->(b)`, sourceLabel, targetLabel, kind)
}

// Close releases the driver.
func (s *Neo4j) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}
