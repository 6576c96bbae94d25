// Package graph implements the passage–entity knowledge graph as an
// arena-indexed adjacency list (no owning references, only int indices),
// per the Design Note calling for an index-based replacement of a cyclic
// object-graph with back-references. Personalized PageRank runs directly
// against this structure.
package graph

import (
	"fmt"
	"sync"
)

// NodeKind distinguishes the two vertex kinds sharing one index space.
type NodeKind uint8

const (
	KindPassage NodeKind = iota
	KindEntity
)

// Node is a vertex: either a passage or an entity, distinguished by Kind.
// Content is only populated for passage nodes (entity nodes only need Name).
type Node struct {
	Kind    NodeKind
	HashID  string // passage_id or entity_id
	Name    string // entity canonical name; empty for passage nodes
	Content string // passage content; empty for entity nodes
}

// edge is stored twice (once per endpoint) in adjacency lists, since the
// graph is undirected. Fields are exported so gob can serialize the
// snapshot in store.go despite the type itself being unexported.
type edge struct {
	To     int
	Weight float64
}

// Graph is the read-mostly, arena-indexed knowledge graph. Build it once
// (via Builder) at index time; it is safe for concurrent readers afterward.
type Graph struct {
	mu        sync.RWMutex
	nodes     []Node
	adjacency [][]edge
	byHashID  map[string]int // hash_id -> node index, for both kinds
	passages  []int          // node indices of kind==KindPassage, in insertion order
	entities  []int          // node indices of kind==KindEntity, in insertion order
}

// New returns an empty graph ready for building.
func New() *Graph {
	return &Graph{byHashID: make(map[string]int)}
}

// NodeCount returns the total vertex count.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// PassageIndices returns the node indices of every passage vertex, in the
// stable order used by PPR's output score vector.
func (g *Graph) PassageIndices() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, len(g.passages))
	copy(out, g.passages)
	return out
}

// NodeAt returns the node at idx.
func (g *Graph) NodeAt(idx int) Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[idx]
}

// IndexOf returns the node index for a passage_id or entity_id.
func (g *Graph) IndexOf(hashID string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byHashID[hashID]
	return idx, ok
}

// EntityIndexByName finds an entity node index by its canonical (lowercased) name.
func (g *Graph) EntityIndexByName(name string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, idx := range g.entities {
		if g.nodes[idx].Name == name {
			return idx, true
		}
	}
	return 0, false
}

// Neighbors returns (neighbor index, edge weight) pairs for idx.
func (g *Graph) Neighbors(idx int) []Scored {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.adjacency[idx]
	out := make([]Scored, len(edges))
	for i, e := range edges {
		out[i] = Scored{Index: e.To, Weight: e.Weight}
	}
	return out
}

// Scored is a neighbor index paired with an edge weight.
type Scored struct {
	Index  int
	Weight float64
}

// EntityChunkCount returns how many passage nodes the named entity is
// adjacent to — the "chunks containing entity" count of spec.md §4.9 step
// 1 — read directly off the arena rather than requiring a caller-built
// index. Returns 0 if the entity isn't in the graph.
func (g *Graph) EntityChunkCount(name string) int {
	idx, ok := g.EntityIndexByName(name)
	if !ok {
		return 0
	}
	count := 0
	for _, n := range g.Neighbors(idx) {
		if g.NodeAt(n.Index).Kind == KindPassage {
			count++
		}
	}
	return count
}

// Builder constructs a Graph. It enforces the invariants: every passage
// node has degree >= 1, no self-loops, weights in (0, 1].
type Builder struct {
	g *Graph
}

// NewBuilder starts a fresh graph build.
func NewBuilder() *Builder {
	return &Builder{g: New()}
}

// AddPassage inserts a passage node (idempotent by hash id) and returns its index.
func (b *Builder) AddPassage(hashID, content string) int {
	if idx, ok := b.g.byHashID[hashID]; ok {
		return idx
	}
	idx := len(b.g.nodes)
	b.g.nodes = append(b.g.nodes, Node{Kind: KindPassage, HashID: hashID, Content: content})
	b.g.adjacency = append(b.g.adjacency, nil)
	b.g.byHashID[hashID] = idx
	b.g.passages = append(b.g.passages, idx)
	return idx
}

// AddEntity inserts an entity node (idempotent by hash id) and returns its index.
func (b *Builder) AddEntity(hashID, name string) int {
	if idx, ok := b.g.byHashID[hashID]; ok {
		return idx
	}
	idx := len(b.g.nodes)
	b.g.nodes = append(b.g.nodes, Node{Kind: KindEntity, HashID: hashID, Name: name})
	b.g.adjacency = append(b.g.adjacency, nil)
	b.g.byHashID[hashID] = idx
	b.g.entities = append(b.g.entities, idx)
	return idx
}

// AddEdge inserts an undirected, weighted edge between two node indices.
// Self-loops are rejected; weight is clamped into (0, 1].
func (b *Builder) AddEdge(a, c int, weight float64) error {
	if a == c {
		return fmt.Errorf("graph: refusing self-loop at node %d", a)
	}
	if weight <= 0 {
		weight = 1e-9
	}
	if weight > 1 {
		weight = 1
	}
	b.g.adjacency[a] = append(b.g.adjacency[a], edge{To: c, Weight: weight})
	b.g.adjacency[c] = append(b.g.adjacency[c], edge{To: a, Weight: weight})
	return nil
}

// Build finalizes the graph, validating the "every passage has degree >= 1"
// invariant, and returns it.
func (b *Builder) Build() (*Graph, error) {
	for _, idx := range b.g.passages {
		if len(b.g.adjacency[idx]) == 0 {
			return nil, fmt.Errorf("graph: passage node %q has degree 0", b.g.nodes[idx].HashID)
		}
	}
	return b.g, nil
}
