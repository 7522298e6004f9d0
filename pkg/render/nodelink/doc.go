// Package nodelink renders crate dependency graphs as node-link diagrams.
//
// Convert a [dag.DAG] to DOT, then optionally render it to SVG in-process:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT output uses a top-to-bottom layout with rounded boxes. With
// Detailed set, nodes show the resolved version and edges the version
// requirement. The DOT source can also be saved and processed with
// external Graphviz tools.
//
// SVG rendering uses [github.com/goccy/go-graphviz], which embeds Graphviz
// as WebAssembly, so no system installation is needed.
package nodelink
