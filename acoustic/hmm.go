package acoustic

import "fmt"

// DefaultNumStates is the number of emitting states per non-silence phoneme.
const DefaultNumStates = 3

// SilenceState is the only state index used by the silence phoneme.
const SilenceState = 0

// Rand is the random source used for sampling. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Topology is a left-to-right HMM where every state has a self-loop.
// Emitting a path through it yields each state repeated a geometric number
// of times.
type Topology struct {
	NumStates int
	Loop      float64 // self-loop probability
}

// NewTopology validates and returns a topology.
func NewTopology(numStates int, loop float64) (Topology, error) {
	if numStates < 1 {
		return Topology{}, fmt.Errorf("%w: num states %d < 1", ErrInvalidConfiguration, numStates)
	}
	if loop < 0 || loop >= 1 {
		return Topology{}, fmt.Errorf("%w: self-loop probability %g not in [0, 1)", ErrInvalidConfiguration, loop)
	}
	return Topology{NumStates: numStates, Loop: loop}, nil
}

// RunLength draws how often a state is visited: at least once, and once more
// for as long as the self-loop is taken.
func (t Topology) RunLength(rng Rand) int {
	n := 1
	for rng.Float64() < t.Loop {
		n++
	}
	return n
}

// Expand appends the state sequence of one allophone: every state of the
// topology in order, each repeated RunLength times. Context and boundary
// are copied from a.
func (t Topology) Expand(dst []AllophoneState, a AllophoneState, rng Rand) []AllophoneState {
	for state := 0; state < t.NumStates; state++ {
		n := t.RunLength(rng)
		for i := 0; i < n; i++ {
			s := a
			s.State = state
			dst = append(dst, s)
		}
	}
	return dst
}
