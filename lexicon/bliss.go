package lexicon

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

type xmlPhoneme struct {
	Symbol    string  `xml:"symbol"`
	Variation *string `xml:"variation"`
}

type xmlPhon struct {
	Text  string `xml:",chardata"`
	Score string `xml:"score,attr"`
}

type xmlLemma struct {
	Orths []string  `xml:"orth"`
	Phons []xmlPhon `xml:"phon"`
}

// Option configures loading.
type Option func(*loader)

type loader struct {
	logger *slog.Logger
}

// WithLogger sets the logger used while loading. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

func newLoader(opts []Option) *loader {
	l := &loader{logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads a Bliss XML lexicon. Only one <phoneme> or <lemma> element is
// decoded into memory at a time. Gzip input is detected from its magic bytes.
func Load(r io.Reader, opts ...Option) (*Lexicon, error) {
	ld := newLoader(opts)
	r, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}

	lex := New(acoustic.NewInventory())
	dec := xml.NewDecoder(r)
	var skipped int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLexicon, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "phoneme":
			var p xmlPhoneme
			if err := dec.DecodeElement(&p, &start); err != nil {
				return nil, fmt.Errorf("%w: phoneme: %v", ErrMalformedLexicon, err)
			}
			if err := addPhoneme(lex.Inventory, p); err != nil {
				return nil, err
			}
		case "lemma":
			var x xmlLemma
			if err := dec.DecodeElement(&x, &start); err != nil {
				return nil, fmt.Errorf("%w: lemma: %v", ErrMalformedLexicon, err)
			}
			n, err := addLemma(lex, x)
			if err != nil {
				return nil, err
			}
			skipped += n
		}
	}
	ld.logger.Debug("phoneme inventory loaded", slog.Int("phonemes", lex.Inventory.Len()))
	if skipped > 0 {
		ld.logger.Debug("skipped orths without pronunciation", slog.Int("count", skipped))
	}

	if err := lex.finish(); err != nil {
		return nil, err
	}
	ld.logger.Info("lexicon loaded",
		slog.Int("phonemes", lex.Inventory.Len()),
		slog.Int("lemmas", len(lex.Lemmas)))
	return lex, nil
}

func addPhoneme(inv *acoustic.Inventory, p xmlPhoneme) error {
	symbol := strings.TrimSpace(p.Symbol)
	variation := acoustic.VariationContext
	if p.Variation != nil {
		v, err := acoustic.ParseVariation(strings.TrimSpace(*p.Variation))
		if err != nil {
			return fmt.Errorf("%w: phoneme %q: %v", ErrMalformedLexicon, symbol, err)
		}
		variation = v
	}
	if err := inv.Add(acoustic.Phoneme(symbol), variation); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedLexicon, err)
	}
	return nil
}

// addLemma registers every orth of a lemma and returns how many were skipped
// for lack of a usable pronunciation.
func addLemma(lex *Lexicon, x xmlLemma) (int, error) {
	var prons []Pronunciation
	for _, ph := range x.Phons {
		fields := strings.Fields(ph.Text)
		if len(fields) == 0 {
			continue
		}
		score := 0.0
		if s := strings.TrimSpace(ph.Score); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: score %q: %v", ErrMalformedLexicon, s, err)
			}
			score = v
		}
		phones := make([]acoustic.Phoneme, len(fields))
		for i, f := range fields {
			phones[i] = acoustic.Phoneme(f)
		}
		prons = append(prons, Pronunciation{Phones: phones, Score: score})
	}
	skipped := 0
	for _, orth := range x.Orths {
		orth = strings.TrimSpace(orth)
		if len(prons) == 0 {
			skipped++
			continue
		}
		if err := lex.Add(orth, prons); err != nil {
			return 0, err
		}
	}
	return skipped, nil
}

func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrMalformedLexicon, err)
		}
		return zr, nil
	}
	return br, nil
}

// LoadFile opens a Bliss XML lexicon, optionally gzip-compressed.
func LoadFile(path string, opts ...Option) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lex, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lex, nil
}
