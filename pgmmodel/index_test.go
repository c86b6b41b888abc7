package pgmmodel

import (
	"testing"

	"github.com/JohnPierman/pgminfer/factor"
)

func mustFactor(t *testing.T, scope []string, rows []factor.FactorRow) *factor.Factor {
	t.Helper()
	f, err := factor.New(scope, rows)
	if err != nil {
		t.Fatalf("factor.New: %v", err)
	}
	return f
}

func TestNewIndexBuildsScopesAndReverseScopes(t *testing.T) {
	fa := mustFactor(t, []string{"A"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0}, Weight: 1.0},
	})
	fab := mustFactor(t, []string{"A", "B"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0, "B": 0}, Weight: 1.0},
	})

	idx, err := NewIndex([]NamedFactor{
		{Name: "f_a", Factor: fa},
		{Name: "f_ab", Factor: fab},
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	if len(idx.ReverseScopes["A"]) != 2 {
		t.Errorf("expected A to be pertinent to 2 factors, got %d", len(idx.ReverseScopes["A"]))
	}
	if len(idx.ReverseScopes["B"]) != 1 {
		t.Errorf("expected B to be pertinent to 1 factor, got %d", len(idx.ReverseScopes["B"]))
	}

	order := idx.VarOrder()
	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Errorf("expected first-seen order [A B], got %v", order)
	}
}

func TestNewIndexRejectsEmptyScope(t *testing.T) {
	_, err := NewIndex([]NamedFactor{{Name: "bad", Factor: &factor.Factor{}}})
	if err == nil {
		t.Fatal("expected an error for a factor with empty scope")
	}
}

func TestBaggageIsUnionOfPertinentScopes(t *testing.T) {
	fab := mustFactor(t, []string{"A", "B"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0, "B": 0}, Weight: 1.0},
	})
	fbc := mustFactor(t, []string{"B", "C"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"B": 0, "C": 0}, Weight: 1.0},
	})

	idx, err := NewIndex([]NamedFactor{
		{Name: "f_ab", Factor: fab},
		{Name: "f_bc", Factor: fbc},
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	baggage := idx.Baggage["B"]
	for _, v := range []string{"A", "B", "C"} {
		if _, ok := baggage[v]; !ok {
			t.Errorf("expected %s in baggage[B], got %v", v, baggage)
		}
	}
}

func TestPickMinBaggageBreaksTiesByOrder(t *testing.T) {
	baggage := map[string]map[string]struct{}{
		"A": {"A": {}, "B": {}},
		"B": {"A": {}, "B": {}},
	}
	order := []string{"B", "A"}

	v, ok := PickMinBaggage(baggage, order)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if v != "B" {
		t.Errorf("expected tie broken in favor of first-seen B, got %s", v)
	}
}

func TestPickMinBaggageNoCandidates(t *testing.T) {
	_, ok := PickMinBaggage(map[string]map[string]struct{}{}, []string{"A"})
	if ok {
		t.Error("expected no candidate when baggage is empty")
	}
}

func TestHasVariable(t *testing.T) {
	fa := mustFactor(t, []string{"A"}, []factor.FactorRow{
		{Assignment: factor.Assignment{"A": 0}, Weight: 1.0},
	})
	idx, err := NewIndex([]NamedFactor{{Name: "f_a", Factor: fa}})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	if !idx.HasVariable("A") {
		t.Error("expected HasVariable(A) to be true")
	}
	if idx.HasVariable("Z") {
		t.Error("expected HasVariable(Z) to be false")
	}
}
