// Package seqgen turns orthography into stochastic allophone state
// sequences, the training targets of HMM/GMM speech recognizers.
//
// A Generator owns its random stream and is not safe for concurrent use.
// The lexicon and state tying it reads are never modified, so independent
// generators (see Clone) may share them across goroutines.
package seqgen

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ieee0824/phoneseq-go/acoustic"
	"github.com/ieee0824/phoneseq-go/lexicon"
	"github.com/ieee0824/phoneseq-go/statetying"
)

// Generator produces allophone state sequences.
type Generator struct {
	lex      *lexicon.Lexicon
	cfg      Config
	tying    *statetying.Tying
	alphabet *acoustic.Alphabet
	phone    acoustic.Topology // non-silence phonemes
	silence  acoustic.Topology // single looping state
	rng      *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithStateTying projects labels through a state tying table instead of
// phoneme indices.
func WithStateTying(st *statetying.Tying) Option {
	return func(g *Generator) {
		g.tying = st
	}
}

// New creates a generator seeded with 0.
func New(lex *lexicon.Lexicon, cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		lex: lex,
		cfg: cfg,
		rng: rand.New(rand.NewSource(0)),
	}
	for _, opt := range opts {
		opt(g)
	}

	var err error
	if g.alphabet, err = acoustic.NewAlphabet(lex.Inventory, cfg.NumStates, cfg.ContextLength); err != nil {
		return nil, err
	}
	if g.phone, err = acoustic.NewTopology(cfg.NumStates, cfg.Repetition); err != nil {
		return nil, err
	}
	if g.silence, err = acoustic.NewTopology(1, cfg.SilenceRepetition); err != nil {
		return nil, err
	}
	if g.tying != nil {
		if bad := lex.Inventory.UnsafeSymbols(); len(bad) > 0 {
			return nil, fmt.Errorf("%w: phoneme symbols %q clash with the allophone state format used by state tying",
				acoustic.ErrInvalidConfiguration, bad)
		}
	}
	return g, nil
}

// Clone returns a generator with the same lexicon, tying and configuration
// and a fresh random stream seeded with 0.
func (g *Generator) Clone() *Generator {
	c := *g
	c.rng = rand.New(rand.NewSource(0))
	return &c
}

// Reseed restarts the random stream. Call it at the start of every epoch:
// equal seeds give identical output.
func (g *Generator) Reseed(epoch int64) {
	g.rng.Seed(epoch)
}

// Config returns the generator configuration.
func (g *Generator) Config() Config { return g.cfg }

// Lexicon returns the lexicon the generator reads.
func (g *Generator) Lexicon() *lexicon.Lexicon { return g.lex }

// Alphabet returns the allophone state codec of this configuration.
func (g *Generator) Alphabet() *acoustic.Alphabet { return g.alphabet }

// Generate maps a whitespace-separated orthography to allophone states.
func (g *Generator) Generate(orth string) ([]acoustic.AllophoneState, error) {
	return g.GenerateWords(strings.Fields(orth))
}

// GenerateWords is Generate for a pre-split orthography.
func (g *Generator) GenerateWords(words []string) ([]acoustic.AllophoneState, error) {
	prons, err := g.pronunciations(words)
	if err != nil {
		return nil, err
	}
	var allos []acoustic.AllophoneState
	for _, pron := range prons {
		allos = appendWord(allos, pron.Phones)
	}
	g.assignContext(allos)
	return g.expand(nil, allos), nil
}

// Phones returns the sampled pronunciation of an orthography as
// space-separated phones, silences included.
func (g *Generator) Phones(orth string) (string, error) {
	prons, err := g.pronunciations(strings.Fields(orth))
	if err != nil {
		return "", err
	}
	parts := make([]string, len(prons))
	for i, p := range prons {
		parts[i] = p.String()
	}
	return strings.Join(parts, " "), nil
}

// pronunciations resolves the words, then draws silences and one
// pronunciation per lemma in temporal order.
func (g *Generator) pronunciations(words []string) ([]lexicon.Pronunciation, error) {
	lemmas, err := g.lex.ResolveAll(words)
	if err != nil {
		return nil, err
	}
	var out []lexicon.Pronunciation
	if g.rng.Float64() < g.cfg.SilenceBeginning {
		out = append(out, g.choose(g.lex.Silence))
	}
	for i, lemma := range lemmas {
		out = append(out, g.choose(lemma))
		if i < len(lemmas)-1 && g.rng.Float64() < g.cfg.SilenceBetweenWords {
			out = append(out, g.choose(g.lex.Silence))
		}
	}
	if g.rng.Float64() < g.cfg.SilenceEnd {
		out = append(out, g.choose(g.lex.Silence))
	}
	return out, nil
}

func (g *Generator) choose(lemma *lexicon.Lemma) lexicon.Pronunciation {
	return lemma.Pronunciations[g.rng.Intn(len(lemma.Pronunciations))]
}

// appendWord appends one center allophone per phone, flagging the word edges.
func appendWord(dst []acoustic.AllophoneState, phones []acoustic.Phoneme) []acoustic.AllophoneState {
	start := len(dst)
	for _, p := range phones {
		dst = append(dst, acoustic.AllophoneState{ID: p})
	}
	if len(dst) > start {
		dst[start].MarkInitial()
		dst[len(dst)-1].MarkFinal()
	}
	return dst
}

// expand emits the HMM states of every allophone with repetitions.
func (g *Generator) expand(dst, allos []acoustic.AllophoneState) []acoustic.AllophoneState {
	for _, a := range allos {
		if a.ID == g.lex.SilencePhone {
			dst = g.appendSilence(dst)
			continue
		}
		dst = g.phone.Expand(dst, a, g.rng)
	}
	return dst
}

// appendSilence emits one run of the silence state. Silence is a word of its
// own, without context.
func (g *Generator) appendSilence(dst []acoustic.AllophoneState) []acoustic.AllophoneState {
	sil := acoustic.AllophoneState{
		ID:       g.lex.SilencePhone,
		Boundary: acoustic.BoundaryInitial | acoustic.BoundaryFinal,
		State:    acoustic.SilenceState,
	}
	return g.silence.Expand(dst, sil, g.rng)
}
