// Package loader parses the external graph file format and evidence
// CLI tokens into in-memory factors, as the one external collaborator
// the core does not implement itself.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JohnPierman/pgminfer/factor"
	"github.com/JohnPierman/pgminfer/pgmerr"
	"github.com/JohnPierman/pgminfer/pgmmodel"
)

// wireGraph mirrors the JSON shape: { "graph": { "factors": [...] } }.
type wireGraph struct {
	Graph struct {
		Factors []wireFactor `json:"factors"`
	} `json:"graph"`
}

type wireFactor struct {
	Name            string       `json:"name"`
	GroundVariables []orderedRow `json:"groundVariables"`
}

// rowField is one key/value pair of a groundVariables row, in the order
// it appeared in the source JSON object.
type rowField struct {
	Key   string
	Value json.Number
}

// orderedRow is a groundVariables row decoded preserving the field order
// the JSON object actually used. encoding/json ordinarily unmarshals an
// object into a plain Go map, which has no iteration-order guarantee —
// that would make a factor's Scope, and therefore the VE/cliquetree
// first-seen elimination tie-break (spec.md §4.C/§9), depend on Go's
// randomized map order instead of the graph file's own variable order.
// UnmarshalJSON walks the object's tokens directly to avoid that.
type orderedRow []rowField

func (r *orderedRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("groundVariables row must be a JSON object")
	}

	var fields orderedRow
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("groundVariables row has a non-string key")
		}

		var value json.Number
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding value for %q: %w", key, err)
		}
		fields = append(fields, rowField{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return err
	}

	*r = fields
	return nil
}

// value returns the field named key, and whether it was present.
func (r orderedRow) value(key string) (json.Number, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// LoadGraph decodes the JSON graph file format into named factors, in
// the order the factors array lists them, with each factor's Scope in
// the order its variables first appear across its groundVariables rows
// — this order becomes the variable first-seen order the VE and
// cliquetree engines rely on for deterministic tie-breaking.
//
// encoding/json is used deliberately here (see DESIGN.md): this is the
// one boundary concern where the teacher's and the pack's dependency
// stacks offer nothing the standard decoder doesn't already do better.
func LoadGraph(r io.Reader) ([]pgmmodel.NamedFactor, error) {
	var wire wireGraph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: invalid graph JSON: %v", pgmerr.ErrMalformedFactor, err)
	}

	if len(wire.Graph.Factors) == 0 {
		return nil, fmt.Errorf("%w: graph declares no factors", pgmerr.ErrMalformedFactor)
	}

	out := make([]pgmmodel.NamedFactor, 0, len(wire.Graph.Factors))
	seenNames := make(map[string]struct{}, len(wire.Graph.Factors))
	for _, wf := range wire.Graph.Factors {
		if wf.Name == "" {
			return nil, fmt.Errorf("%w: factor with empty name", pgmerr.ErrMalformedFactor)
		}
		if _, dup := seenNames[wf.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate factor name %q", pgmerr.ErrMalformedFactor, wf.Name)
		}
		seenNames[wf.Name] = struct{}{}

		rows := make([]factor.FactorRow, 0, len(wf.GroundVariables))
		scopeSeen := make(map[string]struct{})
		var scope []string

		for _, row := range wf.GroundVariables {
			weightStr, ok := row.value("value")
			if !ok {
				return nil, fmt.Errorf("%w: factor %q has a row with no \"value\"", pgmerr.ErrMalformedFactor, wf.Name)
			}
			weight, err := strconv.ParseFloat(string(weightStr), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: factor %q has a non-numeric value %q", pgmerr.ErrMalformedFactor, wf.Name, weightStr)
			}

			assignment := make(factor.Assignment, len(row)-1)
			for _, f := range row {
				if f.Key == "value" {
					continue
				}
				state, err := strconv.Atoi(string(f.Value))
				if err != nil {
					return nil, fmt.Errorf("%w: factor %q variable %q has non-integer state %q",
						pgmerr.ErrMalformedFactor, wf.Name, f.Key, f.Value)
				}
				assignment[f.Key] = state

				if _, seen := scopeSeen[f.Key]; !seen {
					scopeSeen[f.Key] = struct{}{}
					scope = append(scope, f.Key)
				}
			}
			rows = append(rows, factor.FactorRow{Assignment: assignment, Weight: weight})
		}

		f, err := factor.New(scope, rows)
		if err != nil {
			return nil, fmt.Errorf("factor %q: %w", wf.Name, err)
		}
		out = append(out, pgmmodel.NamedFactor{Name: wf.Name, Factor: f})
	}

	return out, nil
}

// LoadEvidence parses "var=state" CLI tokens into an Assignment,
// mirroring parse_evidence from the Python reference loader.
func LoadEvidence(pairs []string) (factor.Assignment, error) {
	evidence := make(factor.Assignment, len(pairs))
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("%w: evidence token %q is not of the form var=state", pgmerr.ErrMalformedFactor, p)
		}
		state, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: evidence token %q has non-integer state", pgmerr.ErrMalformedFactor, p)
		}
		evidence[parts[0]] = state
	}
	return evidence, nil
}
