package factor

import "testing"

func TestNewValidatesScopeCoverage(t *testing.T) {
	_, err := New([]string{"A", "B"}, []FactorRow{
		{Assignment: Assignment{"A": 0}, Weight: 1.0},
	})
	if err == nil {
		t.Fatal("expected an error for a row missing variable B")
	}
}

func TestNewRejectsDuplicateRows(t *testing.T) {
	_, err := New([]string{"A"}, []FactorRow{
		{Assignment: Assignment{"A": 0}, Weight: 0.3},
		{Assignment: Assignment{"A": 0}, Weight: 0.7},
	})
	if err == nil {
		t.Fatal("expected an error for a duplicate assignment")
	}
}

func TestNewRejectsEmptyRows(t *testing.T) {
	_, err := New([]string{"A"}, nil)
	if err == nil {
		t.Fatal("expected an error for a factor with no rows")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	f, err := New([]string{"A"}, []FactorRow{
		{Assignment: Assignment{"A": 0}, Weight: 0.4},
		{Assignment: Assignment{"A": 1}, Weight: 0.6},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cp := f.Copy()
	cp.Rows[0].Weight = 99
	cp.Rows[0].Assignment["A"] = 5

	if f.Rows[0].Weight == 99 {
		t.Error("mutating the copy's weight leaked into the original")
	}
	if f.Rows[0].Assignment["A"] == 5 {
		t.Error("mutating the copy's assignment leaked into the original")
	}
}

func TestScopeSet(t *testing.T) {
	f, err := New([]string{"A", "B"}, []FactorRow{
		{Assignment: Assignment{"A": 0, "B": 0}, Weight: 1.0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	set := f.ScopeSet()
	if _, ok := set["A"]; !ok {
		t.Error("expected A in scope set")
	}
	if _, ok := set["B"]; !ok {
		t.Error("expected B in scope set")
	}
	if len(set) != 2 {
		t.Errorf("expected 2 scope members, got %d", len(set))
	}
}
