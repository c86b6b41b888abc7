// Package ve implements the single-query marginal via greedy
// min-baggage variable elimination.
package ve

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/pgmerr"
	"github.com/JohnPierman/pgminfer/pgmmodel"
)

// Option configures a Marginal call.
type Option func(*config)

type config struct {
	logger zerolog.Logger
}

// WithLogger attaches a structured logger for elimination progress. The
// core never logs by default (spec: "the core does not log; it returns
// errors to the caller") — only the CLI wires a live logger.
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


// Marginal computes the marginal of queryVar by greedy min-baggage
// elimination, optionally reducing every factor by evidence first. The
// returned factor's scope is {queryVar} and its weights sum to 1.
func Marginal(queryVar string, namedFactors []pgmmodel.NamedFactor, evidence factor.Assignment, opts ...Option) (*factor.Factor, error) {
	cfg := newConfig(opts)

	origIdx, err := pgmmodel.NewIndex(namedFactors)
	if err != nil {
		return nil, err
	}
	if !origIdx.HasVariable(queryVar) {
		return nil, fmt.Errorf("%w: query variable %q", pgmerr.ErrUnknownVariable, queryVar)
	}
	for v := range evidence {
		if !origIdx.HasVariable(v) {
			return nil, fmt.Errorf("%w: evidence variable %q", pgmerr.ErrUnknownVariable, v)
		}
	}

	reduced := make([]pgmmodel.NamedFactor, len(namedFactors))
	for i, nf := range namedFactors {
		f := nf.Factor
		if len(evidence) > 0 {
			rf, rerr := factor.ReduceByEvidence(f, evidence)
			if rerr != nil {
				return nil, rerr
			}
			f = rf
		} else {
			f = f.Copy()
		}
		reduced[i] = pgmmodel.NamedFactor{Name: nf.Name, Factor: f}
	}

	idx, err := pgmmodel.NewIndex(reduced)
	if err != nil {
		return nil, err
	}

	factorStore := make(map[string]*factor.Factor, len(reduced))
	for _, nf := range reduced {
		factorStore[nf.Name] = nf.Factor
	}

	reverseScopes := idx.ReverseScopes
	baggage := idx.Baggage
	order := idx.VarOrder()

	delete(baggage, queryVar)

	finalize := func() (*factor.Factor, error) {
		names := pgmmodel.SortedKeys(reverseScopes[queryVar])
		list := make([]*factor.Factor, 0, len(names))
		for _, name := range names {
			if f, ok := factorStore[name]; ok {
				list = append(list, f)
			}
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %q", pgmerr.ErrDisconnectedQuery, queryVar)
		}
		merged, err := factor.MultiplyProductList(list)
		if err != nil {
			return nil, err
		}
		return factor.Renormalize(merged)
	}

	if len(baggage) == 0 {
		return finalize()
	}

	counter := 0
	for len(baggage) > 0 {
		v, ok := pgmmodel.PickMinBaggage(baggage, order)
		if !ok {
			break
		}
		cfg.logger.Debug().Str("variable", v).Int("baggage_size", len(baggage[v])).Msg("ve: eliminating variable")

		pertinentNames := pgmmodel.SortedKeys(reverseScopes[v])
		pertinentSet := make(map[string]struct{}, len(pertinentNames))
		for _, n := range pertinentNames {
			pertinentSet[n] = struct{}{}
		}
		for u := range reverseScopes {
			for n := range pertinentSet {
				delete(reverseScopes[u], n)
			}
		}

		productList := make([]*factor.Factor, 0, len(pertinentNames))
		for _, name := range pertinentNames {
			if f, ok := factorStore[name]; ok {
				productList = append(productList, f)
				delete(factorStore, name)
			}
		}

		last := len(baggage) == 1

		if len(productList) == 0 {
			delete(baggage, v)
			for u := range baggage {
				delete(baggage[u], v)
			}
			if last {
				return finalize()
			}
			continue
		}

		product, err := factor.MultiplyProductList(productList)
		if err != nil {
			return nil, err
		}
		tau, err := factor.SumOutVars(product, []string{v})
		if err != nil {
			return nil, err
		}

		if last {
			names := pgmmodel.SortedKeys(reverseScopes[queryVar])
			list := make([]*factor.Factor, 0, len(names)+1)
			list = append(list, tau)
			for _, name := range names {
				if f, ok := factorStore[name]; ok {
					list = append(list, f)
				}
			}
			merged, err := factor.MultiplyProductList(list)
			if err != nil {
				return nil, err
			}
			return factor.Renormalize(merged)
		}

		newName := fmt.Sprintf("T%d", counter)
		counter++
		factorStore[newName] = tau
		for _, u := range tau.Scope {
			if reverseScopes[u] == nil {
				reverseScopes[u] = make(map[string]struct{})
			}
			reverseScopes[u][newName] = struct{}{}
		}
		delete(baggage, v)
		for u := range baggage {
			delete(baggage[u], v)
		}
	}

	return finalize()
}
