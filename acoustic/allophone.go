package acoustic

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Boundary holds word boundary flags of an allophone.
type Boundary uint8

const (
	BoundaryInitial Boundary = 1 << iota // first phone of a word (@i)
	BoundaryFinal                        // last phone of a word (@f)
)

// NumBoundaries is the number of distinct Boundary values.
const NumBoundaries = 4

// WordBoundary is the context symbol printed for an empty context.
const WordBoundary = "#"

// formatSeparators are the characters the canonical format uses itself.
// A symbol containing one of them makes the format ambiguous.
const formatSeparators = "{}+-#@. \t"

// AllophoneState is a phoneme in context, specialized to one HMM state.
// History and Future are ordered nearest-to-farthest from the center.
type AllophoneState struct {
	ID       Phoneme
	History  []Phoneme
	Future   []Phoneme
	Boundary Boundary
	State    int
}

// MarkInitial sets the word-initial flag.
func (a *AllophoneState) MarkInitial() { a.Boundary |= BoundaryInitial }

// MarkFinal sets the word-final flag.
func (a *AllophoneState) MarkFinal() { a.Boundary |= BoundaryFinal }

// IsInitial reports the word-initial flag.
func (a AllophoneState) IsInitial() bool { return a.Boundary&BoundaryInitial != 0 }

// IsFinal reports the word-final flag.
func (a AllophoneState) IsFinal() bool { return a.Boundary&BoundaryFinal != 0 }

// Phoneme returns the phoneme at a context offset: 0 is the center, positive
// offsets index the future and negative offsets the history. Offsets beyond
// the stored context return NoPhoneme.
func (a AllophoneState) Phoneme(offset int) Phoneme {
	switch {
	case offset == 0:
		return a.ID
	case offset > 0:
		if offset-1 < len(a.Future) {
			return a.Future[offset-1]
		}
	default:
		if -offset-1 < len(a.History) {
			return a.History[-offset-1]
		}
	}
	return NoPhoneme
}

// Equal reports whether all five fields are equal.
func (a AllophoneState) Equal(b AllophoneState) bool {
	return a.ID == b.ID &&
		a.Boundary == b.Boundary &&
		a.State == b.State &&
		slices.Equal(a.History, b.History) &&
		slices.Equal(a.Future, b.Future)
}

// Format returns the canonical text form, e.g. "k{a+u}@i.0" or "si{#+#}@i@f.0".
// Both contexts are printed nearest first, so "c{b-a+d-e}" has a directly
// before c. State tying tables for context length above 1 must use this order.
func (a AllophoneState) Format() string {
	var b strings.Builder
	b.WriteString(string(a.ID))
	b.WriteByte('{')
	writeContext(&b, a.History)
	b.WriteByte('+')
	writeContext(&b, a.Future)
	b.WriteByte('}')
	if a.IsInitial() {
		b.WriteString("@i")
	}
	if a.IsFinal() {
		b.WriteString("@f")
	}
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(a.State))
	return b.String()
}

func (a AllophoneState) String() string { return a.Format() }

func writeContext(b *strings.Builder, ctx []Phoneme) {
	if len(ctx) == 0 {
		b.WriteString(WordBoundary)
		return
	}
	for i, p := range ctx {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(string(p))
	}
}

// ParseAllophoneState parses the canonical text form produced by Format.
// Strings that do not format back to themselves are rejected, which also
// rejects forms made ambiguous by symbols containing separator characters.
func ParseAllophoneState(s string) (AllophoneState, error) {
	var a AllophoneState
	open := strings.IndexByte(s, '{')
	closing := strings.LastIndexByte(s, '}')
	if open < 0 || closing < open {
		return a, fmt.Errorf("allophone state %q: missing context braces", s)
	}
	a.ID = Phoneme(s[:open])
	hist, fut, ok := strings.Cut(s[open+1:closing], "+")
	if !ok {
		return a, fmt.Errorf("allophone state %q: missing '+' in context", s)
	}
	var err error
	if a.History, err = parseContext(hist); err != nil {
		return a, fmt.Errorf("allophone state %q: %w", s, err)
	}
	if a.Future, err = parseContext(fut); err != nil {
		return a, fmt.Errorf("allophone state %q: %w", s, err)
	}

	rest := s[closing+1:]
	if r, ok := strings.CutPrefix(rest, "@i"); ok {
		a.MarkInitial()
		rest = r
	}
	if r, ok := strings.CutPrefix(rest, "@f"); ok {
		a.MarkFinal()
		rest = r
	}
	stateStr, ok := strings.CutPrefix(rest, ".")
	if !ok {
		return a, fmt.Errorf("allophone state %q: missing state suffix", s)
	}
	state, err := strconv.Atoi(stateStr)
	if err != nil || state < 0 {
		return a, fmt.Errorf("allophone state %q: bad state %q", s, stateStr)
	}
	a.State = state

	if a.Format() != s {
		return a, fmt.Errorf("allophone state %q: ambiguous form", s)
	}
	return a, nil
}

func parseContext(s string) ([]Phoneme, error) {
	if s == WordBoundary {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	out := make([]Phoneme, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty context phoneme in %q", s)
		}
		out[i] = Phoneme(p)
	}
	return out, nil
}

// Key is a structural, collision-free identity of an AllophoneState,
// usable as a map key.
type Key string

// Key encodes all five fields with length prefixes.
func (a AllophoneState) Key() Key {
	buf := make([]byte, 0, 16+len(a.ID)+4*(len(a.History)+len(a.Future)))
	buf = appendPhoneme(buf, a.ID)
	buf = binary.AppendUvarint(buf, uint64(len(a.History)))
	for _, p := range a.History {
		buf = appendPhoneme(buf, p)
	}
	buf = binary.AppendUvarint(buf, uint64(len(a.Future)))
	for _, p := range a.Future {
		buf = appendPhoneme(buf, p)
	}
	buf = append(buf, byte(a.Boundary))
	buf = binary.AppendVarint(buf, int64(a.State))
	return Key(buf)
}

func appendPhoneme(buf []byte, p Phoneme) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(p)))
	return append(buf, p...)
}

// SafeSymbol reports whether p can be used inside the canonical format
// without making it ambiguous.
func SafeSymbol(p Phoneme) bool {
	return p != NoPhoneme && !strings.ContainsAny(string(p), formatSeparators)
}

// UnsafeSymbols returns the inventory symbols for which SafeSymbol is false.
func (inv *Inventory) UnsafeSymbols() []Phoneme {
	var out []Phoneme
	for _, p := range inv.list {
		if !SafeSymbol(p.Symbol) {
			out = append(out, p.Symbol)
		}
	}
	return out
}
