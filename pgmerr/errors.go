// Package pgmerr defines the sentinel errors surfaced by the inference
// core. Callers branch on error kind with errors.Is; call sites wrap a
// sentinel with %w to attach context. Sentinels are never reworded at
// definition site — see builder/errors.go in lvlath for the pattern this
// follows.
package pgmerr

import "errors"

// ErrMalformedFactor indicates a factor whose rows do not share one
// consistent key set, or a factor with zero rows.
var ErrMalformedFactor = errors.New("pgm: malformed factor")

// ErrUnknownVariable indicates a query or evidence variable that does not
// appear in any factor's scope.
var ErrUnknownVariable = errors.New("pgm: unknown variable")

// ErrIncompatibleEvidence indicates evidence that eliminates every row of
// some factor, leaving the model inconsistent.
var ErrIncompatibleEvidence = errors.New("pgm: incompatible evidence")

// ErrDegenerateFactor indicates a renormalization whose partition function
// is zero.
var ErrDegenerateFactor = errors.New("pgm: degenerate factor")

// ErrNonTreeClusterGraph indicates a cluster graph that is not a tree
// after subset merging: it has a cycle, is disconnected, or has no
// clusters at all. This is an invariant violation, not an expected
// runtime condition.
var ErrNonTreeClusterGraph = errors.New("pgm: cluster graph is not a tree")

// ErrDisconnectedQuery indicates a query variable that was removed from
// baggage (so it is known) but is not mentioned by any remaining factor
// once evidence and elimination have run. Resolved open question: this
// implementation fails rather than returning a silent uniform marginal.
var ErrDisconnectedQuery = errors.New("pgm: query variable is disconnected from all factors")
