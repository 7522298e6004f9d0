// Package dag holds crate dependency graphs.
//
// A graph is built around a root crate: nodes are crates (with the version
// that was resolved for them) and edges carry the version requirement and
// dependency kind from the dependent's manifest.
//
//	g := dag.New("app")
//	_ = g.AddNode(dag.Node{ID: "app", Version: "0.1.0"})
//	_ = g.AddNode(dag.Node{ID: "serde", Version: "1.0.210"})
//	_ = g.AddEdge(dag.Edge{From: "app", To: "serde", Req: "^1.0", Kind: "normal"})
//	g.SetDepths()
//
// [DAG.Nodes] and [DAG.Edges] return stable orderings so that text and DOT
// output do not depend on the order in which a concurrent crawl finished.
//
// Crates.io dependency graphs are acyclic when only normal dependencies are
// followed. Dev-dependencies can introduce cycles; [DAG.Validate] reports
// them.
package dag
