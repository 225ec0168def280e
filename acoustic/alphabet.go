package acoustic

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidConfiguration reports violated context/state bounds or
// out-of-range parameters.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Alphabet is the bijective integer codec for allophone states of a fixed
// (numStates, contextLength, inventory) configuration.
//
// Codes live in [1, NumClasses()]. Zero is never produced: it is reserved for
// the epsilon / no-label symbol of downstream label spaces.
//
// In the mixed-radix digits, 0 stands for NoPhoneme (or a position beyond the
// stored context) and a real phoneme is its inventory index plus one.
type Alphabet struct {
	inv           *Inventory
	numStates     int
	contextLength int
	radix         uint64 // number of phonemes + 1
	numClasses    uint64
}

// NewAlphabet creates a codec. It fails when numStates < 1,
// contextLength < 0, or the code space does not fit in uint64.
func NewAlphabet(inv *Inventory, numStates, contextLength int) (*Alphabet, error) {
	if numStates < 1 {
		return nil, fmt.Errorf("%w: num states %d < 1", ErrInvalidConfiguration, numStates)
	}
	if contextLength < 0 {
		return nil, fmt.Errorf("%w: context length %d < 0", ErrInvalidConfiguration, contextLength)
	}
	a := &Alphabet{
		inv:           inv,
		numStates:     numStates,
		contextLength: contextLength,
		radix:         uint64(inv.Len()) + 1,
	}
	n := uint64(1)
	var overflow bool
	for i := 0; i < 2*contextLength+1 && !overflow; i++ {
		n, overflow = mulCheck(n, a.radix)
	}
	if !overflow {
		n, overflow = mulCheck(n, NumBoundaries)
	}
	if !overflow {
		n, overflow = mulCheck(n, uint64(numStates))
	}
	if overflow {
		return nil, fmt.Errorf("%w: code space of %d phonemes, context %d, %d states exceeds 64 bits",
			ErrInvalidConfiguration, inv.Len(), contextLength, numStates)
	}
	a.numClasses = n
	return a, nil
}

func mulCheck(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi != 0
}

// NumStates returns the number of HMM states per allophone.
func (a *Alphabet) NumStates() int { return a.numStates }

// ContextLength returns the context size on each side.
func (a *Alphabet) ContextLength() int { return a.contextLength }

// NumClasses returns the largest code; valid codes are 1..NumClasses().
func (a *Alphabet) NumClasses() uint64 { return a.numClasses }

func (a *Alphabet) digit(p Phoneme) (uint64, error) {
	if p == NoPhoneme {
		return 0, nil
	}
	i, ok := a.inv.Index(p)
	if !ok {
		return 0, fmt.Errorf("%w: unknown phoneme %q", ErrInvalidConfiguration, p)
	}
	return uint64(i) + 1, nil
}

func (a *Alphabet) phoneme(d uint64) Phoneme {
	if d == 0 {
		return NoPhoneme
	}
	return a.inv.At(int(d - 1)).Symbol
}

// Index encodes s. Offsets are visited from -contextLength to +contextLength,
// then the boundary and the state are appended, and one is added.
func (a *Alphabet) Index(s AllophoneState) (uint64, error) {
	if len(s.History) > a.contextLength || len(s.Future) > a.contextLength {
		return 0, fmt.Errorf("%w: %s has more than %d context phonemes",
			ErrInvalidConfiguration, s.Format(), a.contextLength)
	}
	if s.Boundary >= NumBoundaries {
		return 0, fmt.Errorf("%w: boundary %d out of range", ErrInvalidConfiguration, s.Boundary)
	}
	if s.State < 0 || s.State >= a.numStates {
		return 0, fmt.Errorf("%w: state %d not in [0, %d)", ErrInvalidConfiguration, s.State, a.numStates)
	}
	for _, ctx := range [][]Phoneme{s.History, s.Future} {
		for _, p := range ctx {
			if p == NoPhoneme {
				return 0, fmt.Errorf("%w: %s has an empty context phoneme",
					ErrInvalidConfiguration, s.Format())
			}
		}
	}

	var result uint64
	for i := -a.contextLength; i <= a.contextLength; i++ {
		d, err := a.digit(s.Phoneme(i))
		if err != nil {
			return 0, err
		}
		result = result*a.radix + d
	}
	result = result*NumBoundaries + uint64(s.Boundary)
	result = result*uint64(a.numStates) + uint64(s.State)
	return result + 1, nil
}

// FromIndex decodes a code produced by Index.
func (a *Alphabet) FromIndex(index uint64) (AllophoneState, error) {
	var s AllophoneState
	if index == 0 {
		return s, fmt.Errorf("%w: index 0 is the reserved epsilon", ErrInvalidConfiguration)
	}
	if index > a.numClasses {
		return s, fmt.Errorf("%w: index %d exceeds %d classes", ErrInvalidConfiguration, index, a.numClasses)
	}
	code := index - 1
	s.State = int(code % uint64(a.numStates))
	code /= uint64(a.numStates)
	s.Boundary = Boundary(code % NumBoundaries)
	code /= NumBoundaries

	digits := make([]uint64, 2*a.contextLength+1)
	for i := len(digits) - 1; i >= 0; i-- {
		digits[i] = code % a.radix
		code /= a.radix
	}
	// digits[k] holds offset k-contextLength.
	s.ID = a.phoneme(digits[a.contextLength])
	var err error
	if s.History, err = a.context(digits, -1); err != nil {
		return AllophoneState{}, fmt.Errorf("index %d: %w", index, err)
	}
	if s.Future, err = a.context(digits, 1); err != nil {
		return AllophoneState{}, fmt.Errorf("index %d: %w", index, err)
	}
	return s, nil
}

// context collects the phonemes at offsets dir, 2*dir, ... nearest first.
// A real phoneme after an empty slot has no AllophoneState preimage.
func (a *Alphabet) context(digits []uint64, dir int) ([]Phoneme, error) {
	var out []Phoneme
	ended := false
	for k := 1; k <= a.contextLength; k++ {
		d := digits[a.contextLength+dir*k]
		if d == 0 {
			ended = true
			continue
		}
		if ended {
			return nil, fmt.Errorf("%w: context gap at offset %d", ErrInvalidConfiguration, dir*k)
		}
		out = append(out, a.phoneme(d))
	}
	return out, nil
}
