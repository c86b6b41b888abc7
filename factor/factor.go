// Package factor implements the sparse factor algebra: construction,
// deep copy, and the scope/row invariants shared by every operation in
// packages ve, cliquetree, and bp.
package factor

import (
	"fmt"
	"sort"

	"github.com/JohnPierman/pgminfer/pgmerr"
)

// Assignment maps a variable name to its integer state.
type Assignment map[string]int

// Copy returns a deep copy of the assignment.
func (a Assignment) Copy() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// key returns a canonical string for the assignment, used only to detect
// duplicate rows in New and row collisions in SumOut; it does not affect
// Scope order.
func (a Assignment) key() string {
	names := make([]string, 0, len(a))
	for v := range a {
		names = append(names, v)
	}
	sort.Strings(names)

	b := make([]byte, 0, 8*len(names))
	for _, v := range names {
		b = append(b, v...)
		b = append(b, '=')
		b = append(b, []byte(fmt.Sprintf("%d", a[v]))...)
		b = append(b, ',')
	}
	return string(b)
}

// FactorRow is one (assignment, weight) pair of a Factor.
type FactorRow struct {
	Assignment Assignment
	Weight     float64
}

// Factor is an ordered, sparse collection of rows sharing one scope.
// Rows absent from Rows are implicit zero weight; Product and SumOut
// never synthesize them.
type Factor struct {
	Scope []string
	Rows  []FactorRow
}

// New constructs a Factor, validating that every row's assignment has
// exactly the scope's key set and that no two rows share an assignment.
// A zero-row factor is malformed, per spec.
func New(scope []string, rows []FactorRow) (*Factor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: factor over %v has no rows", pgmerr.ErrMalformedFactor, scope)
	}

	scopeCopy := make([]string, len(scope))
	copy(scopeCopy, scope)

	scopeSet := make(map[string]struct{}, len(scopeCopy))
	for _, v := range scopeCopy {
		scopeSet[v] = struct{}{}
	}

	seen := make(map[string]struct{}, len(rows))
	rowsCopy := make([]FactorRow, len(rows))
	for i, r := range rows {
		if len(r.Assignment) != len(scopeSet) {
			return nil, fmt.Errorf("%w: row %d has %d variables, scope has %d",
				pgmerr.ErrMalformedFactor, i, len(r.Assignment), len(scopeSet))
		}
		for v := range r.Assignment {
			if _, ok := scopeSet[v]; !ok {
				return nil, fmt.Errorf("%w: row %d assigns %s, not in scope %v",
					pgmerr.ErrMalformedFactor, i, v, scopeCopy)
			}
		}

		cp := r.Assignment.Copy()
		k := cp.key()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: duplicate row for assignment %v", pgmerr.ErrMalformedFactor, cp)
		}
		seen[k] = struct{}{}

		rowsCopy[i] = FactorRow{Assignment: cp, Weight: r.Weight}
	}

	return &Factor{Scope: scopeCopy, Rows: rowsCopy}, nil
}

// Copy returns a deep copy of the factor. Every engine that multiplies or
// mutates factors it did not just construct must call Copy first — see
// bp.Run, which copies ψ and every received message before use.
func (f *Factor) Copy() *Factor {
	scopeCopy := make([]string, len(f.Scope))
	copy(scopeCopy, f.Scope)

	rowsCopy := make([]FactorRow, len(f.Rows))
	for i, r := range f.Rows {
		rowsCopy[i] = FactorRow{Assignment: r.Assignment.Copy(), Weight: r.Weight}
	}

	return &Factor{Scope: scopeCopy, Rows: rowsCopy}
}

// ScopeSet returns the factor's scope as a membership set.
func (f *Factor) ScopeSet() map[string]struct{} {
	out := make(map[string]struct{}, len(f.Scope))
	for _, v := range f.Scope {
		out[v] = struct{}{}
	}
	return out
}

// String renders the factor as a small table, in the style of the
// teacher's DiscreteFactor.String.
func (f *Factor) String() string {
	out := fmt.Sprintf("Factor(%v)\n", f.Scope)
	for _, r := range f.Rows {
		out += "  "
		for _, v := range f.Scope {
			out += fmt.Sprintf("%s=%d ", v, r.Assignment[v])
		}
		out += fmt.Sprintf("-> %.6f\n", r.Weight)
	}
	return out
}
