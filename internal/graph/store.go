package graph

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// snapshot is the gob-serializable form of a Graph — the Go-native
// analogue of the teacher ecosystem's "graph.pickle", per spec.md §6.
type snapshot struct {
	Nodes     []Node
	Adjacency [][]edge
}

// Save writes g to path as a gob snapshot.
func Save(g *Graph, path string) error {
	g.mu.RLock()
	snap := snapshot{Nodes: g.nodes, Adjacency: g.adjacency}
	g.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("graph: creating snapshot %s: %w", path, err)
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(snap)
}

// Load reads a gob snapshot from path and reconstructs a Graph, including
// its hash-id and passage/entity index lookups.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: opening snapshot %s: %w", path, err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("graph: decoding snapshot %s: %w", path, err)
	}

	g := New()
	g.nodes = snap.Nodes
	g.adjacency = snap.Adjacency
	for idx, n := range g.nodes {
		g.byHashID[n.HashID] = idx
		switch n.Kind {
		case KindPassage:
			g.passages = append(g.passages, idx)
		case KindEntity:
			g.entities = append(g.entities, idx)
		}
	}
	return g, nil
}

// Neo4jMirror best-effort mirrors the graph's vertices and edges into Neo4j
// for operators who want to browse the knowledge graph with Cypher
// tooling. It is never consulted on the query-time read path: PPR always
// runs against the in-memory arena for latency, per SPEC_FULL.md.
type Neo4jMirror struct {
	driver neo4j.DriverWithContext
	logger *logrus.Logger
}

// NewNeo4jMirror opens a driver connection to uri with basic auth.
func NewNeo4jMirror(uri, user, password string, logger *logrus.Logger) (*Neo4jMirror, error) {
	if logger == nil {
		logger = logrus.New()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j driver: %w", err)
	}
	return &Neo4jMirror{driver: driver, logger: logger}, nil
}

// Close releases the driver.
func (m *Neo4jMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// Mirror upserts every node and edge of g into Neo4j as :Passage/:Entity
// nodes connected by :RELATED_TO edges carrying a weight property. Failures
// are logged and swallowed — this is a best-effort visualization sink, not
// a source of truth.
func (m *Neo4jMirror) Mirror(ctx context.Context, g *Graph) {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	g.mu.RLock()
	nodes := append([]Node(nil), g.nodes...)
	adjacency := append([][]edge(nil), g.adjacency...)
	g.mu.RUnlock()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for idx, n := range nodes {
			label := "Passage"
			if n.Kind == KindEntity {
				label = "Entity"
			}
			_, err := tx.Run(ctx,
				fmt.Sprintf("MERGE (v:%s {hash_id: $hash_id}) SET v.name = $name", label),
				map[string]any{"hash_id": n.HashID, "name": n.Name})
			if err != nil {
				return nil, err
			}
			for _, e := range adjacency[idx] {
				if e.To < idx {
					continue // undirected: write each pair once
				}
				_, err := tx.Run(ctx,
					`MATCH (a {hash_id: $a}), (b {hash_id: $b})
					 MERGE (a)-[r:RELATED_TO]-(b) SET r.weight = $w`,
					map[string]any{"a": n.HashID, "b": nodes[e.To].HashID, "w": e.Weight})
				if err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		m.logger.WithError(err).Warn("graph: neo4j mirror failed, continuing without it")
	}
}
