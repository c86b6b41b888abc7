// Package bp implements clique-tree belief propagation: a two-pass
// message-passing sweep over a cliquetree.Tree, belief reconstruction,
// and per-variable marginal extraction.
package bp

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/JohnPierman/pgminfer/cliquetree"
	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/pgmerr"
	"github.com/JohnPierman/pgminfer/pgmmodel"
)

// Option configures a Run call.
type Option func(*config)

type config struct {
	logger   zerolog.Logger
	parallel bool
}

// WithLogger attaches a structured logger for message-passing progress.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithParallel dispatches the independent message computations within
// one collect-round (or one cluster's outgoing messages in the
// distribute pass) on one goroutine per message instead of running
// them sequentially. Message order in the
// result is unaffected: goroutines only compute values, never mutate
// shared state, so the merge back into `received` stays deterministic
// regardless of completion order.
func WithParallel(parallel bool) Option {
	return func(c *config) { c.parallel = parallel }
}

func newConfig(opts []Option) config {
	c := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Result is the outcome of a BP run: every variable's marginal,
// indexed by state (Marginals[v][s] is P(v = s), and 0 for a state
// below the highest one that has no surviving row), plus the per-cluster beliefs for
// callers that want the full joint-over-cluster-scope distribution.
type Result struct {
	Marginals map[string][]float64
	Beliefs   map[string]*factor.Factor
}

func scopeSliceMinus(scope []string, other map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, v := range scope {
		if _, ok := other[v]; !ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// Run executes the two-pass collect/distribute sweep over tree and
// returns every variable's marginal.
func Run(tree *cliquetree.Tree, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)

	if len(tree.Clusters) == 0 {
		return nil, fmt.Errorf("%w: cluster tree has no clusters", pgmerr.ErrNonTreeClusterGraph)
	}

	// received[to][from] = the message the `from` cluster sent to `to`.
	received := make(map[string]map[string]*factor.Factor, len(tree.Clusters))
	for c := range tree.Clusters {
		received[c] = make(map[string]*factor.Factor)
	}

	remaining := make(map[string]struct{}, len(tree.Clusters))
	for c := range tree.Clusters {
		remaining[c] = struct{}{}
	}

	var ordering []string

	// computeMessage folds psi(c) with every message c has already
	// received except the one from exclude (if any), then sums out
	// everything not in target's scope. The same recipe serves both
	// collect (exclude = the downstream target itself, so nothing is
	// actually excluded yet) and distribute (exclude = the neighbor
	// being sent to).
	computeMessage := func(c, target, exclude string) (*factor.Factor, error) {
		cluster := tree.Clusters[c]
		combined := cluster.Psi.Copy()
		for _, nb := range pgmmodel.SortedKeys(tree.Edges[c]) {
			if nb == exclude {
				continue
			}
			if msg, ok := received[c][nb]; ok {
				product, err := factor.Product(combined, msg.Copy())
				if err != nil {
					return nil, err
				}
				combined = product
			}
		}

		targetScope := tree.Clusters[target].Psi.ScopeSet()
		return factor.SumOut(combined, scopeSliceMinus(combined.Scope, targetScope))
	}

	type outgoing struct {
		from, to string
		msg      *factor.Factor
	}

	dispatch := func(jobs []outgoing, compute func(outgoing) (*factor.Factor, error)) ([]outgoing, error) {
		results := make([]outgoing, len(jobs))
		if !cfg.parallel || len(jobs) < 2 {
			for i, j := range jobs {
				out, err := compute(j)
				if err != nil {
					return nil, err
				}
				j.msg = out
				results[i] = j
			}
			return results, nil
		}

		g, _ := errgroup.WithContext(context.Background())
		for i, j := range jobs {
			i, j := i, j
			g.Go(func() error {
				out, err := compute(j)
				if err != nil {
					return err
				}
				j.msg = out
				results[i] = j
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	for len(remaining) > 0 {
		if len(remaining) == 1 {
			for c := range remaining {
				ordering = append(ordering, c)
				delete(remaining, c)
			}
			break
		}

		var leaves []string
		for c := range remaining {
			degree := 0
			for nb := range tree.Edges[c] {
				if _, ok := remaining[nb]; ok {
					degree++
				}
			}
			if degree <= 1 {
				leaves = append(leaves, c)
			}
		}
		sort.Strings(leaves)

		if len(leaves) == len(remaining) {
			leaves = leaves[:len(leaves)-1]
		}

		jobs := make([]outgoing, len(leaves))
		for i, c := range leaves {
			var downstream string
			for nb := range tree.Edges[c] {
				if _, ok := remaining[nb]; ok {
					downstream = nb
					break
				}
			}
			jobs[i] = outgoing{from: c, to: downstream}
		}

		results, err := dispatch(jobs, func(j outgoing) (*factor.Factor, error) {
			return computeMessage(j.from, j.to, j.to)
		})
		if err != nil {
			return nil, err
		}

		for _, r := range results {
			received[r.to][r.from] = r.msg
			cfg.logger.Debug().Str("from", r.from).Str("to", r.to).Msg("bp: collect message")
			ordering = append(ordering, r.from)
			delete(remaining, r.from)
		}
	}

	// Downward (distribute) pass: walk ordering in reverse, sending to
	// every neighbor not yet visited in this reversed walk.
	visited := make(map[string]struct{}, len(ordering))
	for i := len(ordering) - 1; i >= 0; i-- {
		c := ordering[i]

		var toSend []string
		for nb := range tree.Edges[c] {
			if _, ok := visited[nb]; !ok {
				toSend = append(toSend, nb)
			}
		}
		sort.Strings(toSend)

		jobs := make([]outgoing, len(toSend))
		for i, n := range toSend {
			jobs[i] = outgoing{from: c, to: n}
		}

		results, err := dispatch(jobs, func(j outgoing) (*factor.Factor, error) {
			return computeMessage(j.from, j.to, j.to)
		})
		if err != nil {
			return nil, err
		}

		for _, r := range results {
			received[r.to][r.from] = r.msg
			cfg.logger.Debug().Str("from", r.from).Str("to", r.to).Msg("bp: distribute message")
		}
		visited[c] = struct{}{}
	}

	beliefs := make(map[string]*factor.Factor, len(tree.Clusters))
	for c, cluster := range tree.Clusters {
		combined := cluster.Psi.Copy()
		for _, nb := range pgmmodel.SortedKeys(tree.Edges[c]) {
			msg, ok := received[c][nb]
			if !ok {
				continue
			}
			product, err := factor.Product(combined, msg.Copy())
			if err != nil {
				return nil, err
			}
			combined = product
		}
		beliefs[c] = combined
	}

	marginals := make(map[string][]float64)
	clusterNames := make([]string, 0, len(tree.Clusters))
	for c := range tree.Clusters {
		clusterNames = append(clusterNames, c)
	}
	sort.Strings(clusterNames)

	for _, v := range tree.VarOrder() {
		if _, done := marginals[v]; done {
			continue
		}
		for _, c := range clusterNames {
			belief := beliefs[c]
			found := false
			for _, sv := range belief.Scope {
				if sv == v {
					found = true
					break
				}
			}
			if !found {
				continue
			}

			summed, err := factor.SumOutVars(belief, scopeExcluding(belief.Scope, v))
			if err != nil {
				return nil, err
			}
			norm, err := factor.Renormalize(summed)
			if err != nil {
				return nil, err
			}

			probs := []float64{}
			for _, r := range norm.Rows {
				s := r.Assignment[v]
				if s < 0 {
					return nil, fmt.Errorf("%w: variable %q has negative state %d", pgmerr.ErrMalformedFactor, v, s)
				}
				for len(probs) <= s {
					probs = append(probs, 0)
				}
				probs[s] = r.Weight
			}
			marginals[v] = probs
			break
		}
	}

	return &Result{Marginals: marginals, Beliefs: beliefs}, nil
}

func scopeExcluding(scope []string, v string) []string {
	out := make([]string, 0, len(scope))
	for _, sv := range scope {
		if sv != v {
			out = append(out, sv)
		}
	}
	return out
}
