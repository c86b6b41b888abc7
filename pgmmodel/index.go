// Package pgmmodel builds and maintains the scope/reverse-scope/baggage
// indices that both inference engines (ve, cliquetree) consume, per the
// model index design. Baggage is the elimination cost heuristic: the
// size of baggage[v] is the number of variables that would appear in
// the intermediate factor produced by summing out v.
package pgmmodel

import (
	"fmt"
	"sort"

	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/pgmerr"
)

// NamedFactor pairs a factor with the name it is registered under. A
// slice (rather than a map) carries the factors so that first-seen
// variable order — required for the VE/cliquetree tie-break — is
// derived deterministically from input order rather than Go's
// randomized map iteration.
type NamedFactor struct {
	Name   string
	Factor *factor.Factor
}

// Index holds the scopes, reverse scopes, and baggage of a set of
// factors, plus the order in which variables were first encountered.
type Index struct {
	Scopes        map[string][]string
	ReverseScopes map[string]map[string]struct{}
	Baggage       map[string]map[string]struct{}
	varOrder      []string
}

// NewIndex builds an Index from named factors, in the order given.
func NewIndex(factors []NamedFactor) (*Index, error) {
	scopes := make(map[string][]string, len(factors))
	reverse := make(map[string]map[string]struct{})
	seenVar := make(map[string]struct{})
	var order []string

	for _, nf := range factors {
		if nf.Factor == nil || len(nf.Factor.Scope) == 0 {
			return nil, fmt.Errorf("%w: factor %q has empty scope", pgmerr.ErrMalformedFactor, nf.Name)
		}

		scopeCopy := make([]string, len(nf.Factor.Scope))
		copy(scopeCopy, nf.Factor.Scope)
		scopes[nf.Name] = scopeCopy

		for _, v := range scopeCopy {
			if reverse[v] == nil {
				reverse[v] = make(map[string]struct{})
			}
			reverse[v][nf.Name] = struct{}{}

			if _, ok := seenVar[v]; !ok {
				seenVar[v] = struct{}{}
				order = append(order, v)
			}
		}
	}

	baggage := make(map[string]map[string]struct{}, len(reverse))
	for v, names := range reverse {
		b := make(map[string]struct{})
		for name := range names {
			for _, sv := range scopes[name] {
				b[sv] = struct{}{}
			}
		}
		baggage[v] = b
	}

	return &Index{Scopes: scopes, ReverseScopes: reverse, Baggage: baggage, varOrder: order}, nil
}

// VarOrder returns the variables in first-seen order.
func (idx *Index) VarOrder() []string {
	out := make([]string, len(idx.varOrder))
	copy(out, idx.varOrder)
	return out
}

// HasVariable reports whether v appears in any factor's scope.
func (idx *Index) HasVariable(v string) bool {
	_, ok := idx.ReverseScopes[v]
	return ok
}

// PickMinBaggage returns the variable in candidates (scanned in order)
// with the smallest |baggage[v]|, breaking ties by first occurrence in
// order. It reports false if no candidate is present in baggage.
func PickMinBaggage(baggage map[string]map[string]struct{}, order []string) (string, bool) {
	best := ""
	bestSize := -1
	found := false
	for _, v := range order {
		b, ok := baggage[v]
		if !ok {
			continue
		}
		if !found || len(b) < bestSize {
			best = v
			bestSize = len(b)
			found = true
		}
	}
	return best, found
}

// SetSlice returns the members of a set in the order given by order,
// skipping any member not present in the set.
func SetSlice(set map[string]struct{}, order []string) []string {
	out := make([]string, 0, len(set))
	for _, v := range order {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// SortedKeys returns a string set's members in lexical order, the
// fallback tie-break ve, cliquetree, and bp all use wherever a set's
// own members (not the model's first-seen variable order) need a
// deterministic iteration order.
func SortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnionInPlace merges src into dst.
func UnionInPlace(dst, src map[string]struct{}) {
	for v := range src {
		dst[v] = struct{}{}
	}
}

// CopySet returns a shallow copy of a string set.
func CopySet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for v := range set {
		out[v] = struct{}{}
	}
	return out
}
