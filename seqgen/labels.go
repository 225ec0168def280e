package seqgen

import (
	"fmt"

	"github.com/ieee0824/phoneseq-go/acoustic"
	"github.com/ieee0824/phoneseq-go/lexicon"
)

// Labels maps states to class ids: tied classes when a state tying is
// configured, phoneme inventory indices otherwise.
func (g *Generator) Labels(states []acoustic.AllophoneState) ([]int, error) {
	out := make([]int, len(states))
	for i, s := range states {
		if g.tying != nil {
			c, err := g.tying.ClassFor(s)
			if err != nil {
				return nil, err
			}
			out[i] = c
			continue
		}
		idx, ok := g.lex.Inventory.Index(s.ID)
		if !ok {
			return nil, fmt.Errorf("%w: phoneme %q", lexicon.ErrMissingRequiredEntry, s.ID)
		}
		out[i] = idx
	}
	return out, nil
}

// ClassLabels names the classes returned by Labels, by class id.
func (g *Generator) ClassLabels() []string {
	if g.tying != nil {
		return g.tying.ClassLabels()
	}
	syms := g.lex.Inventory.Symbols()
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = string(s)
	}
	return out
}

// NumClasses returns the size of the label space of Labels.
func (g *Generator) NumClasses() int {
	if g.tying != nil {
		return g.tying.NumClasses()
	}
	return g.lex.Inventory.Len()
}

// Indices encodes states with the allophone state codec. Codes start at 1.
func (g *Generator) Indices(states []acoustic.AllophoneState) ([]uint64, error) {
	out := make([]uint64, len(states))
	for i, s := range states {
		idx, err := g.alphabet.Index(s)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}
