package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/refgraph/refgraph/internal/graph"
)

// SQLite is a local snapshot sink: the same node and edge upserts a
// graph server would receive, written to a file database. It backs
// offline runs and inspection without a server.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the snapshot database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	return &SQLite{db: db}, nil
}

// EnsureSchema creates the snapshot tables if needed.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			label TEXT NOT NULL,
			key TEXT NOT NULL,
			display TEXT,
			props_json TEXT,
			first_imported TEXT NOT NULL,
			PRIMARY KEY (label, key)
		);

		CREATE TABLE IF NOT EXISTS edges (
			source_label TEXT NOT NULL,
			source_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			target_label TEXT NOT NULL,
			target_key TEXT NOT NULL,
			PRIMARY KEY (source_label, source_key, kind, target_label, target_key)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

// Clear empties both tables.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM edges"); err != nil {
		return fmt.Errorf("clearing edges table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return fmt.Errorf("clearing nodes table: %w", err)
	}
	return nil
}

// WriteNodes upserts one batch of same-label nodes. A conflicting key
// refreshes display and properties but keeps first_imported, matching
// the ON CREATE semantics of the server sink.
func (s *SQLite) WriteNodes(ctx context.Context, label string, nodes []graph.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning node batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (label, key, display, props_json, first_imported)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (label, key) DO UPDATE SET
			display = excluded.display,
			props_json = excluded.props_json
	`)
	if err != nil {
		return fmt.Errorf("preparing node upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, n := range nodes {
		var propsJSON []byte
		if len(n.Props) > 0 {
			propsJSON, err = json.Marshal(n.Props)
			if err != nil {
				return fmt.Errorf("marshaling props for %s %s: %w", label, n.Key, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, label, n.Key, n.Display, nullableString(propsJSON), now); err != nil {
			return fmt.Errorf("upserting node %s %s: %w", label, n.Key, err)
		}
	}

	return tx.Commit()
}

// WriteEdges upserts one batch of same-kind edges. The whole triple is
// the primary key, so re-importing is a no-op.
func (s *SQLite) WriteEdges(ctx context.Context, kind graph.EdgeKind, edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning edge batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO edges (source_label, source_key, kind, target_label, target_key)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing edge upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.SourceLabel, e.SourceKey, string(kind), e.TargetLabel, e.TargetKey); err != nil {
			return fmt.Errorf("upserting edge %s: %w", e.TripleKey(), err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close(ctx context.Context) error {
	return s.db.Close()
}

// StoredNode is one snapshot row read back from the nodes table.
type StoredNode struct {
	Label         string
	Key           string
	Display       string
	Props         map[string]any
	FirstImported string
}

// Node reads one node back, or nil when absent.
func (s *SQLite) Node(ctx context.Context, label, key string) (*StoredNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, key, display, props_json, first_imported
		FROM nodes WHERE label = ? AND key = ?
	`, label, key)

	var n StoredNode
	var display, propsJSON sql.NullString
	err := row.Scan(&n.Label, &n.Key, &display, &propsJSON, &n.FirstImported)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reading node %s %s: %w", label, key, err)
	}
	n.Display = display.String
	if propsJSON.Valid && propsJSON.String != "" {
		if err := json.Unmarshal([]byte(propsJSON.String), &n.Props); err != nil {
			return nil, fmt.Errorf("parsing props JSON for %s %s: %w", label, key, err)
		}
	}
	return &n, nil
}

// CountNodes returns the number of stored nodes, for one label or all
// when label is empty.
func (s *SQLite) CountNodes(ctx context.Context, label string) (int, error) {
	var count int
	var err error
	if label == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE label = ?", label).Scan(&count)
	}
	return count, err
}

// CountEdges returns the number of stored edges, for one kind or all
// when kind is empty.
func (s *SQLite) CountEdges(ctx context.Context, kind string) (int, error) {
	var count int
	var err error
	if kind == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges WHERE kind = ?", kind).Scan(&count)
	}
	return count, err
}

// HasEdge reports whether the exact triple is stored.
func (s *SQLite) HasEdge(ctx context.Context, e graph.Edge) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM edges
		WHERE source_label = ? AND source_key = ? AND kind = ? AND target_label = ? AND target_key = ?
	`, e.SourceLabel, e.SourceKey, string(e.Kind), e.TargetLabel, e.TargetKey).Scan(&count)
	return count > 0, err
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
