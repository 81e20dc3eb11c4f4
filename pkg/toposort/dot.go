package toposort

import "github.com/emicklei/dot"

// Graph renders deps as a Graphviz DOT document, for `builddb graph`
// debug output. Each node appears once; each dependency is an edge pointing
// from the dependent node to the thing it depends on.
func Graph[T comparable](deps map[T][]T, display func(T) string) string {
	g := dot.NewGraph(dot.Directed)
	nodes := make(map[T]dot.Node, len(deps))

	for node := range deps {
		nodes[node] = g.Node(display(node))
	}
	for node, ds := range deps {
		for _, d := range ds {
			dn, ok := nodes[d]
			if !ok {
				dn = g.Node(display(d))
				nodes[d] = dn
			}
			g.Edge(nodes[node], dn)
		}
	}
	return g.String()
}
