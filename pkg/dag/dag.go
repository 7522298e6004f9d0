package dag

import (
	"cmp"
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Node is a crate in a dependency graph.
type Node struct {
	ID      string // Crate name
	Version string // Resolved version (max_version), empty if not fetched
	Depth   int    // Shortest distance from the root, set by [DAG.SetDepths]

	// Fetched reports whether the crate's record was retrieved. Crates
	// beyond the depth limit, or whose fetch failed, are only referenced.
	Fetched bool
}

// Edge is a dependency from one crate on another.
type Edge struct {
	From string // Dependent crate
	To   string // Dependency
	Req  string // Version requirement, e.g. "^1.0"
	Kind string // "normal", "build" or "dev"
}

// DAG is a directed crate dependency graph.
//
// The zero value is not usable; use [New]. DAG is not safe for concurrent
// use without external synchronization.
type DAG struct {
	root     string
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
}

// New creates an empty graph whose root crate is root.
func New(root string) *DAG {
	return &DAG{
		root:     root,
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// Root returns the crate the graph was built from.
func (d *DAG) Root() string { return d.root }

// AddNode adds a node. Returns ErrInvalidNodeID if the ID is empty, or
// ErrDuplicateNodeID if it already exists.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	d.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a dependency between two existing nodes. A second edge
// between the same pair is ignored.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(d.outgoing[e.From], e.To) {
		return nil
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// Node returns the node with the given ID. The pointer refers to the node
// in the graph.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by depth, then name.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.ID, b.ID))
	})
	return nodes
}

// Edges returns a copy of all edges ordered by source, then target.
func (d *DAG) Edges() []Edge {
	edges := slices.Clone(d.edges)
	slices.SortFunc(edges, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the direct dependencies of id, sorted.
func (d *DAG) Children(id string) []string { return sorted(d.outgoing[id]) }

// Parents returns the crates depending directly on id, sorted.
func (d *DAG) Parents(id string) []string { return sorted(d.incoming[id]) }

// Sinks returns the crates without dependencies, ordered like [DAG.Nodes].
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, n := range d.Nodes() {
		if len(d.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// SetDepths assigns every node its shortest distance from the root.
// Nodes unreachable from the root get depth -1.
func (d *DAG) SetDepths() {
	for _, n := range d.nodes {
		n.Depth = -1
	}
	root, ok := d.nodes[d.root]
	if !ok {
		return
	}
	root.Depth = 0
	queue := []string{d.root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range d.outgoing[id] {
			if n := d.nodes[child]; n.Depth < 0 {
				n.Depth = d.nodes[id].Depth + 1
				queue = append(queue, child)
			}
		}
	}
}

// Validate returns ErrGraphHasCycle if the graph contains a directed cycle.
func (d *DAG) Validate() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(d.nodes))

	var visit func(string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case gray:
				return true
			case white:
				if visit(child) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, n := range d.Nodes() {
		if color[n.ID] == white && visit(n.ID) {
			return ErrGraphHasCycle
		}
	}
	return nil
}

func sorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
