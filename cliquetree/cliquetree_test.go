package cliquetree

import (
	"errors"
	"testing"

	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/pgmerr"
	"github.com/JohnPierman/pgminfer/pgmmodel"
)

func mustFactor(t *testing.T, scope []string, rows []factor.FactorRow) *factor.Factor {
	t.Helper()
	f, err := factor.New(scope, rows)
	if err != nil {
		t.Fatalf("factor.New: %v", err)
	}
	return f
}

func chainNetwork(t *testing.T) []pgmmodel.NamedFactor {
	t.Helper()

	pa := mustFactor(t, []string{"A"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0}, Weight: 0.6},
		{Assignment: factor.Assignment{"A": 1}, Weight: 0.4},
	})
	pba := mustFactor(t, []string{"A", "B"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0, "B": 0}, Weight: 0.9},
		{Assignment: factor.Assignment{"A": 0, "B": 1}, Weight: 0.1},
		{Assignment: factor.Assignment{"A": 1, "B": 0}, Weight: 0.2},
		{Assignment: factor.Assignment{"A": 1, "B": 1}, Weight: 0.8},
	})
	pcb := mustFactor(t, []string{"B", "C"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"B": 0, "C": 0}, Weight: 0.7},
		{Assignment: factor.Assignment{"B": 0, "C": 1}, Weight: 0.3},
		{Assignment: factor.Assignment{"B": 1, "C": 0}, Weight: 0.1},
		{Assignment: factor.Assignment{"B": 1, "C": 1}, Weight: 0.9},
	})

	return []pgmmodel.NamedFactor{
		{Name: "p_a", Factor: pa},
		{Name: "p_b_given_a", Factor: pba},
		{Name: "p_c_given_b", Factor: pcb},
	}
}

// vStructureNetwork is the student network's converging-parents fragment:
// D and I are independent priors, both pointing into G. p_g_given_d_i's
// scope is deliberately declared G-first so elimination picks G before
// D and I (all three are tied on the baggage heuristic), which forces
// two real, non-degenerate subset merges rather than the single
// immediate full-scope cluster a D-first scope would produce.
func vStructureNetwork(t *testing.T) []pgmmodel.NamedFactor {
	t.Helper()

	pgdi := mustFactor(t, []string{"G", "D", "I"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"D": 0, "I": 0, "G": 0}, Weight: 0.9},
		{Assignment: factor.Assignment{"D": 0, "I": 0, "G": 1}, Weight: 0.1},
		{Assignment: factor.Assignment{"D": 0, "I": 1, "G": 0}, Weight: 0.5},
		{Assignment: factor.Assignment{"D": 0, "I": 1, "G": 1}, Weight: 0.5},
		{Assignment: factor.Assignment{"D": 1, "I": 0, "G": 0}, Weight: 0.4},
		{Assignment: factor.Assignment{"D": 1, "I": 0, "G": 1}, Weight: 0.6},
		{Assignment: factor.Assignment{"D": 1, "I": 1, "G": 0}, Weight: 0.2},
		{Assignment: factor.Assignment{"D": 1, "I": 1, "G": 1}, Weight: 0.8},
	})
	pd := mustFactor(t, []string{"D"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"D": 0}, Weight: 0.6},
		{Assignment: factor.Assignment{"D": 1}, Weight: 0.4},
	})
	pi := mustFactor(t, []string{"I"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"I": 0}, Weight: 0.7},
		{Assignment: factor.Assignment{"I": 1}, Weight: 0.3},
	})

	return []pgmmodel.NamedFactor{
		{Name: "p_g_given_d_i", Factor: pgdi},
		{Name: "p_d", Factor: pd},
		{Name: "p_i", Factor: pi},
	}
}

// TestBuildMergesConvergingParentsIntoOneCluster exercises a genuine
// subset-cluster merge on the student network's v-structure: the
// elimination trace first builds a {D,I,G} cluster around p_g_given_d_i,
// then a {D} cluster around p_d and an {I} cluster around p_i, each a
// strict non-trivial subset of the surviving {D,I,G} cluster — unlike
// the chain-network fixtures, where the only subset merge absorbs a
// cluster with zero member factors and an empty scope.
func TestBuildMergesConvergingParentsIntoOneCluster(t *testing.T) {
	tree, err := Build(vStructureNetwork(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(tree.Clusters) != 1 {
		t.Fatalf("expected the {D}/{I} clusters to merge fully into the {D,I,G} cluster, got %d clusters", len(tree.Clusters))
	}

	for _, c := range tree.Clusters {
		for _, member := range []string{"p_g_given_d_i", "p_d", "p_i"} {
			if _, ok := c.Members[member]; !ok {
				t.Errorf("expected surviving cluster to absorb member %q, members: %v", member, c.Members)
			}
		}
		covered := make(map[string]struct{})
		for _, v := range c.Psi.Scope {
			covered[v] = struct{}{}
		}
		for _, v := range []string{"D", "I", "G"} {
			if _, ok := covered[v]; !ok {
				t.Errorf("expected merged cluster's psi to cover variable %s, scope %v", v, c.Psi.Scope)
			}
		}
	}
}

func TestBuildProducesATree(t *testing.T) {
	tree, err := Build(chainNetwork(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	n := len(tree.Clusters)
	if n < 1 {
		t.Fatal("expected at least one cluster")
	}

	edgeCount := 0
	for c := range tree.Clusters {
		edgeCount += len(tree.Neighbors(c))
	}
	edgeCount /= 2
	if edgeCount != n-1 {
		t.Errorf("expected %d edges for %d clusters, got %d", n-1, n, edgeCount)
	}
}

func TestBuildCoversEveryVariable(t *testing.T) {
	tree, err := Build(chainNetwork(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	covered := make(map[string]struct{})
	for _, c := range tree.Clusters {
		for _, v := range c.Psi.Scope {
			covered[v] = struct{}{}
		}
	}
	for _, v := range []string{"A", "B", "C"} {
		if _, ok := covered[v]; !ok {
			t.Errorf("expected variable %s to appear in some cluster's psi", v)
		}
	}
}

func TestBuildWithEvidenceReducesFactors(t *testing.T) {
	tree, err := Build(chainNetwork(t), factor.Assignment{"A": 0})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Clusters) == 0 {
		t.Fatal("expected at least one cluster")
	}
}

func TestBuildRejectsUnknownEvidenceVariable(t *testing.T) {
	_, err := Build(chainNetwork(t), factor.Assignment{"Z": 0})
	if !errors.Is(err, pgmerr.ErrUnknownVariable) {
		t.Fatalf("expected ErrUnknownVariable, got %v", err)
	}
}

func TestBuildSingleFactorYieldsSingleCluster(t *testing.T) {
	pa := mustFactor(t, []string{"A"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0}, Weight: 0.6},
		{Assignment: factor.Assignment{"A": 1}, Weight: 0.4},
	})

	tree, err := Build([]pgmmodel.NamedFactor{{Name: "p_a", Factor: pa}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Clusters) != 1 {
		t.Fatalf("expected exactly 1 cluster, got %d", len(tree.Clusters))
	}
}
