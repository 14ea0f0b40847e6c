// Package graph assembles the node and edge upsert operations one run
// emits against the graph store. The model is write-only: operations
// accumulate in an OpSet, deduplicated, and are handed to a sink in
// label/type batches.
package graph

import (
	"fmt"
	"strings"

	"github.com/refgraph/refgraph/internal/entity"
)

// Node is one node upsert: merge by (Label, Key), then set properties.
type Node struct {
	Label   string
	Key     string
	Display string
	Props   map[string]any
}

// EdgeKind is a relationship type on the graph store. Every kind
// sources from a Paper node.
type EdgeKind string

const (
	AuthoredBy       EdgeKind = "AUTHORED_BY"
	HasKeyword       EdgeKind = "HAS_KEYWORD"
	AffiliatedWith   EdgeKind = "AFFILIATED_WITH"
	PublishedIn      EdgeKind = "PUBLISHED_IN"
	PublishedBy      EdgeKind = "PUBLISHED_BY"
	BelongsToSubject EdgeKind = "BELONGS_TO_SUBJECT"
)

// Kinds lists every relationship kind.
var Kinds = []EdgeKind{
	AuthoredBy,
	HasKeyword,
	AffiliatedWith,
	PublishedIn,
	PublishedBy,
	BelongsToSubject,
}

// TargetKind returns the entity kind this relationship points at.
func (k EdgeKind) TargetKind() entity.Kind {
	switch k {
	case AuthoredBy:
		return entity.KindAuthor
	case HasKeyword:
		return entity.KindKeyword
	case AffiliatedWith:
		return entity.KindInstitution
	case PublishedIn:
		return entity.KindVenue
	case PublishedBy:
		return entity.KindPublisher
	case BelongsToSubject:
		return entity.KindSubject
	}
	return ""
}

// ParseRelation maps a cross-reference Relation cell onto a
// relationship kind. Only the paper-to-entity link kinds a
// cross-reference file can express are accepted.
func ParseRelation(s string) (EdgeKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authored_by", "authored by", "author", "authors":
		return AuthoredBy, true
	case "has_keyword", "has keyword", "keyword", "keywords", "tag":
		return HasKeyword, true
	case "affiliated_with", "affiliated with", "institution", "affiliation":
		return AffiliatedWith, true
	}
	return "", false
}

// Edge is one relationship upsert, a directed typed triple. Repeated
// identical triples collapse to a single edge.
type Edge struct {
	SourceLabel string
	SourceKey   string
	Kind        EdgeKind
	TargetLabel string
	TargetKey   string
}

// TripleKey identifies the edge for deduplication.
func (e Edge) TripleKey() string {
	return fmt.Sprintf("%s:%s-[%s]->%s:%s", e.SourceLabel, e.SourceKey, e.Kind, e.TargetLabel, e.TargetKey)
}

// OpSet accumulates the deduplicated upserts of one run in insertion
// order, so a run over the same input always emits the same sequence.
type OpSet struct {
	nodeIdx  map[string]int
	nodeList []Node
	edgeIdx  map[string]bool
	edgeList []Edge
}

// NewOpSet returns an empty operation set.
func NewOpSet() *OpSet {
	return &OpSet{
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[string]bool),
	}
}

func nodeKey(label, key string) string {
	return label + ":" + key
}

// AddNode records a node upsert. A repeat sighting of (label, key)
// keeps the first display label and unions properties, first value
// winning per property, so an entity pre-registered with richer
// attributes never loses them to a later bare sighting (and vice
// versa). Reports whether the node was new.
func (s *OpSet) AddNode(n Node) bool {
	k := nodeKey(n.Label, n.Key)
	if i, ok := s.nodeIdx[k]; ok {
		if len(n.Props) > 0 {
			existing := &s.nodeList[i]
			if existing.Props == nil {
				existing.Props = make(map[string]any, len(n.Props))
			}
			for pk, pv := range n.Props {
				if _, dup := existing.Props[pk]; !dup {
					existing.Props[pk] = pv
				}
			}
		}
		return false
	}
	s.nodeIdx[k] = len(s.nodeList)
	s.nodeList = append(s.nodeList, n)
	return true
}

// AddEdge records an edge upsert, collapsing repeated triples.
// Reports whether the edge was new.
func (s *OpSet) AddEdge(e Edge) bool {
	k := e.TripleKey()
	if s.edgeIdx[k] {
		return false
	}
	s.edgeIdx[k] = true
	s.edgeList = append(s.edgeList, e)
	return true
}

// Nodes returns all node upserts in insertion order.
func (s *OpSet) Nodes() []Node {
	return s.nodeList
}

// Edges returns all edge upserts in insertion order.
func (s *OpSet) Edges() []Edge {
	return s.edgeList
}

// NodeGroup is the node upserts of one label.
type NodeGroup struct {
	Label string
	Nodes []Node
}

// EdgeGroup is the edge upserts of one relationship kind.
type EdgeGroup struct {
	Kind  EdgeKind
	Edges []Edge
}

// NodeGroups partitions nodes by label, labels in first-seen order,
// nodes in insertion order within each group.
func (s *OpSet) NodeGroups() []NodeGroup {
	idx := make(map[string]int)
	var groups []NodeGroup
	for _, n := range s.nodeList {
		i, ok := idx[n.Label]
		if !ok {
			i = len(groups)
			idx[n.Label] = i
			groups = append(groups, NodeGroup{Label: n.Label})
		}
		groups[i].Nodes = append(groups[i].Nodes, n)
	}
	return groups
}

// EdgeGroups partitions edges by kind, kinds in first-seen order.
func (s *OpSet) EdgeGroups() []EdgeGroup {
	idx := make(map[EdgeKind]int)
	var groups []EdgeGroup
	for _, e := range s.edgeList {
		i, ok := idx[e.Kind]
		if !ok {
			i = len(groups)
			idx[e.Kind] = i
			groups = append(groups, EdgeGroup{Kind: e.Kind})
		}
		groups[i].Edges = append(groups[i].Edges, e)
	}
	return groups
}
