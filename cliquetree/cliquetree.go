// Package cliquetree builds a tree of clusters from an elimination
// trace, merges subset clusters, and materializes each surviving
// cluster's combined factor (ψ), for consumption by package bp.
package cliquetree

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/graph"
	"github.com/JohnPierman/pgminfer/pgmerr"
	"github.com/JohnPierman/pgminfer/pgmmodel"
)

// Cluster is a node of the tree: a set of original factor names whose
// product is its ψ once materialized.
type Cluster struct {
	Name    string
	Members map[string]struct{}
	Psi     *factor.Factor
}

// Tree is the undirected cluster graph produced by Build, adjacency
// shaped like the teacher's graph.UndirectedGraph.
type Tree struct {
	Clusters map[string]*Cluster
	Edges    map[string]map[string]struct{}

	factorScopes map[string][]string
	varOrder     []string
}

// Neighbors returns c's neighbor cluster names in deterministic order.
func (t *Tree) Neighbors(c string) []string {
	return pgmmodel.SortedKeys(t.Edges[c])
}

// VarOrder returns every variable in the model, in first-seen order.
func (t *Tree) VarOrder() []string {
	out := make([]string, len(t.varOrder))
	copy(out, t.varOrder)
	return out
}

// Option configures a Build call.
type Option func(*config)

type config struct {
	logger zerolog.Logger
}

// WithLogger attaches a structured logger for build progress.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) config {
	c := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// clusterPayload is the data carried directly on each node of the
// working graph during Build: the original factor names assigned to
// the cluster, and the combined scope (union of those factors' scopes)
// used by the subset-merge test. It is replaced wholesale by
// graph.UndirectedGraph.SetPayload whenever a cluster absorbs another.
type clusterPayload struct {
	Members map[string]struct{}
	Scope   map[string]struct{}
}

// clusterGraph is the working graph type: an undirected graph of
// clusters, each node carrying its own clusterPayload instead of the
// bare node the teacher's graph.UndirectedGraph started from.
type clusterGraph = graph.UndirectedGraph[clusterPayload]

// mergeInto absorbs c1's edges onto c2: drop the c1-c2 edge, and
// reroute every other edge incident to c1 onto c2. Callers must also
// merge the two nodes' payloads and remove c1 from the graph.
func mergeInto(g *clusterGraph, c1, c2 string) {
	for _, n := range g.Neighbors(c1) {
		g.RemoveEdge(c1, n)
		if n == c2 {
			continue
		}
		g.AddEdge(n, c2)
	}
}

func unionScope(members map[string]struct{}, factorScopes map[string][]string) map[string]struct{} {
	scope := make(map[string]struct{})
	for f := range members {
		for _, v := range factorScopes[f] {
			scope[v] = struct{}{}
		}
	}
	return scope
}

func isSubset(a, b map[string]struct{}) bool {
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// Build runs the elimination trace, subset merge, and ψ materialization
// of the clique-tree construction over namedFactors, reducing by
// evidence first (mirroring variable elimination's own evidence step).
func Build(namedFactors []pgmmodel.NamedFactor, evidence factor.Assignment, opts ...Option) (*Tree, error) {
	cfg := newConfig(opts)

	origIdx, err := pgmmodel.NewIndex(namedFactors)
	if err != nil {
		return nil, err
	}
	for v := range evidence {
		if !origIdx.HasVariable(v) {
			return nil, fmt.Errorf("%w: evidence variable %q", pgmerr.ErrUnknownVariable, v)
		}
	}

	reduced := make([]pgmmodel.NamedFactor, len(namedFactors))
	factorsByName := make(map[string]*factor.Factor, len(namedFactors))
	for i, nf := range namedFactors {
		f := nf.Factor
		if len(evidence) > 0 {
			rf, err := factor.ReduceByEvidence(f, evidence)
			if err != nil {
				return nil, err
			}
			f = rf
		} else {
			f = f.Copy()
		}
		reduced[i] = pgmmodel.NamedFactor{Name: nf.Name, Factor: f}
		factorsByName[nf.Name] = f
	}

	idx, err := pgmmodel.NewIndex(reduced)
	if err != nil {
		return nil, err
	}

	scopes := make(map[string][]string, len(idx.Scopes))
	for k, v := range idx.Scopes {
		scopes[k] = v
	}
	reverseScopes := idx.ReverseScopes
	baggage := idx.Baggage
	order := idx.VarOrder()

	tauToCluster := make(map[string]string)
	clusterOrder := make([]string, 0)
	g := graph.NewUndirectedGraph[clusterPayload]()

	counter := 0
	for len(baggage) > 0 {
		v, ok := pgmmodel.PickMinBaggage(baggage, order)
		if !ok {
			break
		}

		cName := fmt.Sprintf("C%d", counter)
		tName := fmt.Sprintf("T%d", counter)
		tauToCluster[tName] = cName
		clusterOrder = append(clusterOrder, cName)
		g.AddNode(cName, clusterPayload{})

		pertinent := pgmmodel.SortedKeys(reverseScopes[v])

		members := make(map[string]struct{})
		tauScope := make(map[string]struct{})
		for _, f := range pertinent {
			for _, sv := range scopes[f] {
				tauScope[sv] = struct{}{}
			}
			if prevCluster, isTau := tauToCluster[f]; isTau {
				g.AddEdge(cName, prevCluster)
			} else {
				members[f] = struct{}{}
			}
		}
		g.SetPayload(cName, clusterPayload{Members: members, Scope: unionScope(members, idx.Scopes)})

		delete(tauScope, v)
		tauScopeSlice := pgmmodel.SetSlice(tauScope, order)
		scopes[tName] = tauScopeSlice

		cfg.logger.Debug().Str("cluster", cName).Str("eliminated", v).
			Strs("members", pgmmodel.SetSlice(members, order)).Msg("cliquetree: elimination trace step")

		for _, u := range tauScopeSlice {
			if reverseScopes[u] == nil {
				reverseScopes[u] = make(map[string]struct{})
			}
			reverseScopes[u][tName] = struct{}{}
			for _, f := range pertinent {
				delete(reverseScopes[u], f)
			}

			if baggage[u] == nil {
				baggage[u] = make(map[string]struct{})
			}
			pgmmodel.UnionInPlace(baggage[u], tauScope)
			delete(baggage[u], v)
		}
		delete(baggage, v)
		counter++
	}

	// Step 2: subset merge. Each cluster's member set and combined scope
	// live on the graph node itself; absorbing c1 into c2 folds c1's
	// payload into c2's and removes c1 from the graph outright.
	for _, c1 := range clusterOrder {
		p1, ok := g.Payload(c1)
		if !ok {
			continue
		}
		for _, c2 := range g.Neighbors(c1) {
			if c1 == c2 {
				continue
			}
			p2, ok := g.Payload(c2)
			if !ok {
				continue
			}
			if isSubset(p1.Scope, p2.Scope) {
				merged := clusterPayload{
					Members: pgmmodel.CopySet(p2.Members),
					Scope:   pgmmodel.CopySet(p2.Scope),
				}
				for f := range p1.Members {
					merged.Members[f] = struct{}{}
				}
				pgmmodel.UnionInPlace(merged.Scope, p1.Scope)
				g.SetPayload(c2, merged)
				mergeInto(g, c1, c2)
				g.RemoveNode(c1)
				cfg.logger.Debug().Str("absorbed", c1).Str("into", c2).Msg("cliquetree: subset merge")
				break
			}
		}
	}

	if err := checkTree(g); err != nil {
		return nil, err
	}

	// Step 3: materialize ψ.
	clusters := make(map[string]*Cluster, len(g.Nodes()))
	for _, c := range g.Nodes() {
		payload, _ := g.Payload(c)
		names := pgmmodel.SortedKeys(payload.Members)
		memberFactors := make([]*factor.Factor, 0, len(names))
		for _, name := range names {
			memberFactors = append(memberFactors, factorsByName[name])
		}
		psi, err := factor.MultiplyProductList(memberFactors)
		if err != nil {
			return nil, err
		}
		clusters[c] = &Cluster{Name: c, Members: pgmmodel.CopySet(payload.Members), Psi: psi}
	}

	edges := make(map[string]map[string]struct{}, len(clusters))
	for c := range clusters {
		nbSet := make(map[string]struct{})
		for _, n := range g.Neighbors(c) {
			nbSet[n] = struct{}{}
		}
		edges[c] = nbSet
	}

	return &Tree{
		Clusters:     clusters,
		Edges:        edges,
		factorScopes: idx.Scopes,
		varOrder:     order,
	}, nil
}

// checkTree verifies the cluster graph is acyclic and connected: exactly
// |clusters|-1 edges and every cluster reachable from any one of them.
// The builder should never produce a violation from acyclic elimination
// input; a failure here is an invariant violation, not an expected
// runtime condition.
func checkTree(g *clusterGraph) error {
	nodes := g.Nodes()
	n := len(nodes)
	if n == 0 {
		return fmt.Errorf("%w: no clusters produced", pgmerr.ErrNonTreeClusterGraph)
	}
	if n == 1 {
		return nil
	}

	edgeCount := 0
	for _, c := range nodes {
		edgeCount += len(g.Neighbors(c))
	}
	edgeCount /= 2
	if edgeCount != n-1 {
		return fmt.Errorf("%w: %d clusters but %d edges, expected %d", pgmerr.ErrNonTreeClusterGraph, n, edgeCount, n-1)
	}

	start := nodes[0]
	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range g.Neighbors(cur) {
			if _, ok := visited[nb]; !ok {
				visited[nb] = struct{}{}
				stack = append(stack, nb)
			}
		}
	}
	if len(visited) != n {
		return fmt.Errorf("%w: cluster graph is disconnected (%d of %d reachable)", pgmerr.ErrNonTreeClusterGraph, len(visited), n)
	}

	return nil
}
