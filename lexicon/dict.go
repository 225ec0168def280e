package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

// LoadText reads a lexicon from a tab-separated file.
// Format: orth<TAB>phoneme1 phoneme2 ...[<TAB>score]
//
// Repeated orths add pronunciation variants. The inventory is built in order
// of first appearance; phonemes used only by [SILENCE] get variation none.
func LoadText(r io.Reader, opts ...Option) (*Lexicon, error) {
	ld := newLoader(opts)
	type entry struct {
		orth string
		pron Pronunciation
	}
	var entries []entry
	var order []acoustic.Phoneme
	seen := make(map[acoustic.Phoneme]bool)
	nonSilence := make(map[acoustic.Phoneme]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("%w: line %d: expected 2 or 3 tab-separated fields, got %d",
				ErrMalformedLexicon, lineNum, len(parts))
		}
		orth := strings.TrimSpace(parts[0])
		phonemeStrs := strings.Fields(parts[1])
		if orth == "" || len(phonemeStrs) == 0 {
			return nil, fmt.Errorf("%w: line %d: empty orth or pronunciation", ErrMalformedLexicon, lineNum)
		}
		score := 0.0
		if len(parts) == 3 {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: score: %v", ErrMalformedLexicon, lineNum, err)
			}
			score = v
		}

		phonemes := make([]acoustic.Phoneme, len(phonemeStrs))
		for i, p := range phonemeStrs {
			ph := acoustic.Phoneme(p)
			phonemes[i] = ph
			if !seen[ph] {
				seen[ph] = true
				order = append(order, ph)
			}
			if orth != SilenceOrth {
				nonSilence[ph] = true
			}
		}
		entries = append(entries, entry{orth: orth, pron: Pronunciation{Phones: phonemes, Score: score}})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	inv := acoustic.NewInventory()
	for _, ph := range order {
		v := acoustic.VariationContext
		if !nonSilence[ph] {
			v = acoustic.VariationNone
		}
		if err := inv.Add(ph, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLexicon, err)
		}
	}
	lex := New(inv)
	for _, e := range entries {
		if lemma, ok := lex.Lemmas[e.orth]; ok {
			lemma.Pronunciations = append(lemma.Pronunciations, e.pron)
			continue
		}
		if err := lex.Add(e.orth, []Pronunciation{e.pron}); err != nil {
			return nil, err
		}
	}
	if err := lex.finish(); err != nil {
		return nil, err
	}
	ld.logger.Info("lexicon loaded",
		slog.Int("phonemes", inv.Len()),
		slog.Int("lemmas", len(lex.Lemmas)))
	return lex, nil
}

// LoadTextFile is a convenience wrapper that opens a file path.
func LoadTextFile(path string, opts ...Option) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lex, err := LoadText(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lex, nil
}

// LoadAny picks the loader from the file name: ".txt" and ".tsv" use
// LoadText, anything else (including ".xml.gz") is read as Bliss XML.
func LoadAny(path string, opts ...Option) (*Lexicon, error) {
	switch {
	case strings.HasSuffix(path, ".txt"), strings.HasSuffix(path, ".tsv"):
		return LoadTextFile(path, opts...)
	}
	return LoadFile(path, opts...)
}
