package lexicon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

// SilenceOrth is the lemma every lexicon must define.
const SilenceOrth = "[SILENCE]"

var (
	// ErrMissingRequiredEntry is returned when the lexicon lacks [SILENCE]
	// or a pronunciation references a phoneme outside the inventory.
	ErrMissingRequiredEntry = errors.New("missing required lexicon entry")

	// ErrMalformedLexicon is returned for structural errors in a lexicon source.
	ErrMalformedLexicon = errors.New("malformed lexicon")

	// ErrUnresolvedWord matches *UnresolvedWordError.
	ErrUnresolvedWord = errors.New("unresolved word")
)

// UnresolvedWordError reports a token that is not in the lexicon, neither
// as a whole nor split at '/' or '-'.
type UnresolvedWordError struct {
	Word string // the token as it appeared in the orthography
	Part string // the first part that could not be resolved
}

func (e *UnresolvedWordError) Error() string {
	if e.Part != "" && e.Part != e.Word {
		return fmt.Sprintf("unresolved word %q (part %q)", e.Word, e.Part)
	}
	return fmt.Sprintf("unresolved word %q", e.Word)
}

// Unwrap makes errors.Is(err, ErrUnresolvedWord) work.
func (e *UnresolvedWordError) Unwrap() error { return ErrUnresolvedWord }

// Pronunciation is one phone sequence of a lemma.
type Pronunciation struct {
	Phones []acoustic.Phoneme
	Score  float64
}

// String returns the phones joined by spaces.
func (p Pronunciation) String() string {
	parts := make([]string, len(p.Phones))
	for i, ph := range p.Phones {
		parts[i] = string(ph)
	}
	return strings.Join(parts, " ")
}

// Lemma is an orthographic form with its pronunciation variants.
type Lemma struct {
	Orth           string
	Pronunciations []Pronunciation
}

// Lexicon holds the phoneme inventory and the orthography to lemma mapping.
// It is read-only after loading and safe for concurrent readers.
type Lexicon struct {
	Inventory    *acoustic.Inventory
	Lemmas       map[string]*Lemma
	Silence      *Lemma
	SilencePhone acoustic.Phoneme // first phone of the [SILENCE] lemma
}

// New creates an empty lexicon around an inventory.
func New(inv *acoustic.Inventory) *Lexicon {
	return &Lexicon{
		Inventory: inv,
		Lemmas:    make(map[string]*Lemma),
	}
}

// Add registers a lemma. Orthographies must be unique.
func (l *Lexicon) Add(orth string, prons []Pronunciation) error {
	if _, ok := l.Lemmas[orth]; ok {
		return fmt.Errorf("%w: duplicate orth %q", ErrMalformedLexicon, orth)
	}
	l.Lemmas[orth] = &Lemma{Orth: orth, Pronunciations: prons}
	return nil
}

// finish validates phone references and locates the silence lemma.
func (l *Lexicon) finish() error {
	for orth, lemma := range l.Lemmas {
		for _, pron := range lemma.Pronunciations {
			for _, ph := range pron.Phones {
				if _, ok := l.Inventory.Lookup(ph); !ok {
					return fmt.Errorf("%w: lemma %q uses phoneme %q not in inventory",
						ErrMissingRequiredEntry, orth, ph)
				}
			}
		}
	}
	sil, ok := l.Lemmas[SilenceOrth]
	if !ok {
		return fmt.Errorf("%w: no %s lemma", ErrMissingRequiredEntry, SilenceOrth)
	}
	if len(sil.Pronunciations) == 0 || len(sil.Pronunciations[0].Phones) == 0 {
		return fmt.Errorf("%w: %s has no phone", ErrMissingRequiredEntry, SilenceOrth)
	}
	l.Silence = sil
	l.SilencePhone = sil.Pronunciations[0].Phones[0]
	return nil
}

// Lookup returns the lemma for an orthography.
func (l *Lexicon) Lookup(orth string) (*Lemma, bool) {
	lemma, ok := l.Lemmas[orth]
	return lemma, ok
}

// Resolve maps a token to lemmas. A token missing from the lexicon is split
// at '/' if it contains one, otherwise at '-', and each part is resolved
// again. The first separator present decides the split.
func (l *Lexicon) Resolve(token string) ([]*Lemma, error) {
	lemmas, part, ok := l.resolve(token, nil)
	if !ok {
		return nil, &UnresolvedWordError{Word: token, Part: part}
	}
	return lemmas, nil
}

func (l *Lexicon) resolve(token string, dst []*Lemma) ([]*Lemma, string, bool) {
	if lemma, ok := l.Lemmas[token]; ok {
		return append(dst, lemma), "", true
	}
	for _, sep := range []string{"/", "-"} {
		if !strings.Contains(token, sep) {
			continue
		}
		for _, part := range strings.Split(token, sep) {
			var missing string
			var ok bool
			if dst, missing, ok = l.resolve(part, dst); !ok {
				return nil, missing, false
			}
		}
		return dst, "", true
	}
	return nil, token, false
}

// ResolveAll resolves every whitespace-separated token of an orthography.
func (l *Lexicon) ResolveAll(words []string) ([]*Lemma, error) {
	var out []*Lemma
	for _, w := range words {
		lemmas, err := l.Resolve(w)
		if err != nil {
			return nil, err
		}
		out = append(out, lemmas...)
	}
	return out, nil
}

// Words returns all orthographies in the lexicon.
func (l *Lexicon) Words() []string {
	words := make([]string, 0, len(l.Lemmas))
	for w := range l.Lemmas {
		words = append(words, w)
	}
	return words
}
