package seqgen

import (
	"fmt"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

// GenerateGarbage returns exactly targetLen allophone states built from
// random phonemes. Blocks of random words are context-assigned and expanded
// like real orthography, each followed by a silence run so that the next
// block starts without context.
func (g *Generator) GenerateGarbage(targetLen int) ([]acoustic.AllophoneState, error) {
	if targetLen < 0 {
		return nil, fmt.Errorf("%w: garbage length %d < 0", acoustic.ErrInvalidConfiguration, targetLen)
	}
	out := make([]acoustic.AllophoneState, 0, targetLen)
	for len(out) < targetLen {
		out = g.expand(out, g.randomBlock())
		out = g.appendSilence(out)
	}
	return out[:targetLen], nil
}

// randomBlock draws a geometric number of random words and assigns context
// across them.
func (g *Generator) randomBlock() []acoustic.AllophoneState {
	var allos []acoustic.AllophoneState
	for {
		allos = appendWord(allos, g.randomPhones())
		if g.rng.Float64() >= g.cfg.GarbageWordContinue {
			break
		}
	}
	g.assignContext(allos)
	return allos
}

// randomPhones draws a geometric number of uniformly chosen phonemes.
func (g *Generator) randomPhones() []acoustic.Phoneme {
	inv := g.lex.Inventory
	var phones []acoustic.Phoneme
	for {
		phones = append(phones, inv.At(g.rng.Intn(inv.Len())).Symbol)
		if g.rng.Float64() >= g.cfg.GarbagePhoneContinue {
			break
		}
	}
	return phones
}
