package lexicon

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// minSuggestScore is the Jaro-Winkler similarity a suggestion must reach.
const minSuggestScore = 0.8

// Suggest returns up to n orthographies most similar to word, best first.
// It scans the whole lexicon, so it is meant for error reporting only.
func (l *Lexicon) Suggest(word string, n int) []string {
	if n <= 0 || word == "" {
		return nil
	}
	type candidate struct {
		orth  string
		score float64
	}
	lower := strings.ToLower(word)
	var cands []candidate
	for orth := range l.Lemmas {
		if orth == SilenceOrth {
			continue
		}
		score := matchr.JaroWinkler(lower, strings.ToLower(orth), false)
		if score >= minSuggestScore {
			cands = append(cands, candidate{orth: orth, score: score})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].orth < cands[j].orth
	})
	if len(cands) > n {
		cands = cands[:n]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.orth
	}
	return out
}
