package seqgen

import (
	"fmt"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

// Config holds the generator parameters.
type Config struct {
	NumStates     int // HMM states per non-silence phoneme
	ContextLength int // phonemes of context on each side, 1 = triphone

	SilenceBeginning    float64 // prob of silence before the first word
	SilenceBetweenWords float64 // prob of silence between adjacent words
	SilenceEnd          float64 // prob of silence after the last word

	Repetition        float64 // self-loop prob of non-silence states
	SilenceRepetition float64 // self-loop prob of the silence state

	GarbagePhoneContinue float64 // prob of one more phone in a garbage word
	GarbageWordContinue  float64 // prob of one more word in a garbage block
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		NumStates:            acoustic.DefaultNumStates,
		ContextLength:        1,
		SilenceBeginning:     0.1,
		SilenceBetweenWords:  0.1,
		SilenceEnd:           0.1,
		Repetition:           0.9,
		SilenceRepetition:    0.95,
		GarbagePhoneContinue: 0.8,
		GarbageWordContinue:  0.8,
	}
}

// Validate checks parameter ranges. Continuation probabilities must stay
// below 1 so that every geometric run terminates.
func (c Config) Validate() error {
	if c.NumStates < 1 {
		return fmt.Errorf("%w: num states %d < 1", acoustic.ErrInvalidConfiguration, c.NumStates)
	}
	if c.ContextLength < 0 {
		return fmt.Errorf("%w: context length %d < 0", acoustic.ErrInvalidConfiguration, c.ContextLength)
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"add silence beginning", c.SilenceBeginning},
		{"add silence between words", c.SilenceBetweenWords},
		{"add silence end", c.SilenceEnd},
	} {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%w: %s probability %g not in [0, 1]", acoustic.ErrInvalidConfiguration, p.name, p.v)
		}
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"repetition", c.Repetition},
		{"silence repetition", c.SilenceRepetition},
		{"garbage phone", c.GarbagePhoneContinue},
		{"garbage word", c.GarbageWordContinue},
	} {
		if p.v < 0 || p.v >= 1 {
			return fmt.Errorf("%w: %s probability %g not in [0, 1)", acoustic.ErrInvalidConfiguration, p.name, p.v)
		}
	}
	return nil
}
