package seqgen

import "github.com/ieee0824/phoneseq-go/acoustic"

// window is a fixed-capacity context of the most recent phonemes,
// nearest first.
type window struct {
	buf []acoustic.Phoneme
	n   int
}

func newWindow(size int) *window {
	return &window{buf: make([]acoustic.Phoneme, size)}
}

func (w *window) reset() { w.n = 0 }

// push makes p the nearest phoneme, dropping the farthest one when full.
func (w *window) push(p acoustic.Phoneme) {
	if len(w.buf) == 0 {
		return
	}
	if w.n < len(w.buf) {
		w.n++
	}
	copy(w.buf[1:w.n], w.buf[:w.n-1])
	w.buf[0] = p
}

func (w *window) snapshot() []acoustic.Phoneme {
	if w.n == 0 {
		return nil
	}
	out := make([]acoustic.Phoneme, w.n)
	copy(out, w.buf[:w.n])
	return out
}

// assignContext fills History in a forward sweep and Future in a backward
// sweep. Phonemes without context variation get no context and cut the
// context of their neighbours.
func (g *Generator) assignContext(allos []acoustic.AllophoneState) {
	inv := g.lex.Inventory
	w := newWindow(g.cfg.ContextLength)
	for i := range allos {
		if !inv.HasContext(allos[i].ID) {
			w.reset()
			continue
		}
		allos[i].History = w.snapshot()
		w.push(allos[i].ID)
	}
	w.reset()
	for i := len(allos) - 1; i >= 0; i-- {
		if !inv.HasContext(allos[i].ID) {
			w.reset()
			continue
		}
		allos[i].Future = w.snapshot()
		w.push(allos[i].ID)
	}
}
