// Package render groups the output renderers for crate dependency graphs.
//
// # Node-Link Diagrams
//
// The [nodelink] subpackage renders a resolved [dag.DAG] as a directed
// graph diagram using Graphviz. Nodes appear as boxes connected by arrows,
// with the root crate highlighted.
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Text trees and JSON are produced by the command line directly from the
// graph and do not need a renderer.
//
// [dag.DAG]: github.com/matzehuels/consecrates/pkg/dag.DAG
// [nodelink]: github.com/matzehuels/consecrates/pkg/render/nodelink
package render
