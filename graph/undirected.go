package graph

import "sort"

// UndirectedGraph is an undirected graph whose nodes carry a caller-chosen
// payload instead of being bare presence markers — cliquetree.Build uses
// this to store each cluster's member factor names and combined scope
// directly on the graph node it is building, rather than in a parallel
// map keyed by the same node name.
type UndirectedGraph[T any] struct {
	nodes map[string]T
	edges map[string]map[string]bool
}

// NewUndirectedGraph creates a new empty undirected graph over payload
// type T.
func NewUndirectedGraph[T any]() *UndirectedGraph[T] {
	return &UndirectedGraph[T]{
		nodes: make(map[string]T),
		edges: make(map[string]map[string]bool),
	}
}

// AddNode adds a node carrying payload, or overwrites the payload of a
// node already present.
func (g *UndirectedGraph[T]) AddNode(node string, payload T) {
	if _, ok := g.edges[node]; !ok {
		g.edges[node] = make(map[string]bool)
	}
	g.nodes[node] = payload
}

// Payload returns the payload stored at node, and whether node exists.
func (g *UndirectedGraph[T]) Payload(node string) (T, bool) {
	p, ok := g.nodes[node]
	return p, ok
}

// SetPayload overwrites the payload of an existing node. It is a no-op
// if node has not been added.
func (g *UndirectedGraph[T]) SetPayload(node string, payload T) {
	if _, ok := g.nodes[node]; !ok {
		return
	}
	g.nodes[node] = payload
}

// RemoveNode deletes node and every edge incident to it, e.g. after
// cliquetree's subset merge absorbs node into a neighbor.
func (g *UndirectedGraph[T]) RemoveNode(node string) {
	for n := range g.edges[node] {
		delete(g.edges[n], node)
	}
	delete(g.edges, node)
	delete(g.nodes, node)
}

// AddEdge adds an undirected edge between two nodes, creating either
// endpoint with a zero-value payload if it is not already present.
func (g *UndirectedGraph[T]) AddEdge(node1, node2 string) {
	g.ensureNode(node1)
	g.ensureNode(node2)
	g.edges[node1][node2] = true
	g.edges[node2][node1] = true
}

func (g *UndirectedGraph[T]) ensureNode(node string) {
	if _, ok := g.edges[node]; !ok {
		g.edges[node] = make(map[string]bool)
		var zero T
		g.nodes[node] = zero
	}
}

// RemoveEdge removes an undirected edge.
func (g *UndirectedGraph[T]) RemoveEdge(node1, node2 string) {
	if g.edges[node1] != nil {
		delete(g.edges[node1], node2)
	}
	if g.edges[node2] != nil {
		delete(g.edges[node2], node1)
	}
}

// HasEdge checks if an edge exists.
func (g *UndirectedGraph[T]) HasEdge(node1, node2 string) bool {
	if g.edges[node1] == nil {
		return false
	}
	return g.edges[node1][node2]
}

// Nodes returns all node names in the graph, sorted.
func (g *UndirectedGraph[T]) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Neighbors returns all neighbors of a node, sorted.
func (g *UndirectedGraph[T]) Neighbors(node string) []string {
	neighbors := make([]string, 0)
	if g.edges[node] != nil {
		for neighbor := range g.edges[node] {
			neighbors = append(neighbors, neighbor)
		}
	}
	sort.Strings(neighbors)
	return neighbors
}

// Edges returns all edges in the graph, each pair reported once.
func (g *UndirectedGraph[T]) Edges() [][2]string {
	edges := make([][2]string, 0)
	visited := make(map[string]map[string]bool)

	for node1, neighbors := range g.edges {
		for node2 := range neighbors {
			if visited[node2] == nil || !visited[node2][node1] {
				edges = append(edges, [2]string{node1, node2})
				if visited[node1] == nil {
					visited[node1] = make(map[string]bool)
				}
				visited[node1][node2] = true
			}
		}
	}

	return edges
}

// Copy creates a deep copy of the graph's structure. Node payloads are
// copied by value, so a pointer- or map-valued T is still shared between
// the original and the copy.
func (g *UndirectedGraph[T]) Copy() *UndirectedGraph[T] {
	newGraph := NewUndirectedGraph[T]()
	for node, payload := range g.nodes {
		newGraph.AddNode(node, payload)
	}
	for node, neighbors := range g.edges {
		for neighbor := range neighbors {
			if node < neighbor { // Add each edge only once
				newGraph.AddEdge(node, neighbor)
			}
		}
	}
	return newGraph
}
