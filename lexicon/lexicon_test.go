package lexicon

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

const testBliss = `<?xml version="1.0" encoding="utf-8"?>
<lexicon>
  <phoneme-inventory>
    <phoneme><symbol>a</symbol></phoneme>
    <phoneme><symbol>b</symbol><variation>context</variation></phoneme>
    <phoneme><symbol>k</symbol></phoneme>
    <phoneme><symbol>si</symbol><variation>none</variation></phoneme>
  </phoneme-inventory>
  <lemma special="silence">
    <orth>[SILENCE]</orth>
    <phon score="0.0">si</phon>
  </lemma>
  <lemma special="sentence-end">
    <orth>[SENTENCE-END]</orth>
  </lemma>
  <lemma>
    <orth>ab</orth>
    <orth>AB</orth>
    <phon>a b</phon>
    <phon score="1.5">a k b</phon>
  </lemma>
  <lemma>
    <orth>ka</orth>
    <phon>k a</phon>
  </lemma>
</lexicon>
`

const testText = `# orth	phones	score
[SILENCE]	si
ab	a b
ab	a k b	1.5
AB	a b
AB	a k b	1.5
ka	k a
`

func TestLoadBliss(t *testing.T) {
	lex, err := Load(strings.NewReader(testBliss))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	checkTestLexicon(t, lex)

	if _, ok := lex.Lookup("[SENTENCE-END]"); ok {
		t.Error("lemma without pronunciation should be skipped")
	}
	if got := lex.Inventory.Symbols(); len(got) != 4 || got[0] != "a" || got[3] != "si" {
		t.Errorf("inventory = %v, want [a b k si]", got)
	}
}

func TestLoadText(t *testing.T) {
	lex, err := LoadText(strings.NewReader(testText))
	if err != nil {
		t.Fatalf("LoadText error: %v", err)
	}
	checkTestLexicon(t, lex)
	if got := lex.Inventory.Symbols(); len(got) != 4 || got[0] != "si" || got[1] != "a" {
		t.Errorf("inventory = %v, want [si a b k]", got)
	}
}

func checkTestLexicon(t *testing.T, lex *Lexicon) {
	t.Helper()
	if lex.SilencePhone != "si" {
		t.Errorf("SilencePhone = %q, want si", lex.SilencePhone)
	}
	if lex.Inventory.HasContext("si") {
		t.Error("si should have variation none")
	}
	if !lex.Inventory.HasContext("a") || !lex.Inventory.HasContext("b") {
		t.Error("a and b should have variation context")
	}

	for _, orth := range []string{"ab", "AB"} {
		lemma, ok := lex.Lookup(orth)
		if !ok {
			t.Fatalf("%s not found", orth)
		}
		if len(lemma.Pronunciations) != 2 {
			t.Fatalf("%s pronunciations = %d, want 2", orth, len(lemma.Pronunciations))
		}
		if got := lemma.Pronunciations[1].String(); got != "a k b" {
			t.Errorf("%s pron[1] = %q, want %q", orth, got, "a k b")
		}
		if lemma.Pronunciations[1].Score != 1.5 {
			t.Errorf("%s score = %g, want 1.5", orth, lemma.Pronunciations[1].Score)
		}
		if lemma.Pronunciations[0].Score != 0 {
			t.Errorf("%s default score = %g, want 0", orth, lemma.Pronunciations[0].Score)
		}
	}
}

func TestLoadGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(testBliss)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "lexicon.xml.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	lex, err := LoadAny(path)
	if err != nil {
		t.Fatalf("LoadAny error: %v", err)
	}
	checkTestLexicon(t, lex)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want error
	}{
		{
			name: "no silence",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>a</symbol></phoneme></phoneme-inventory><lemma><orth>x</orth><phon>a</phon></lemma></lexicon>`,
			want: ErrMissingRequiredEntry,
		},
		{
			name: "unknown phoneme",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>si</symbol></phoneme></phoneme-inventory><lemma><orth>[SILENCE]</orth><phon>si</phon></lemma><lemma><orth>x</orth><phon>q</phon></lemma></lexicon>`,
			want: ErrMissingRequiredEntry,
		},
		{
			name: "silence without phone",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>si</symbol></phoneme></phoneme-inventory><lemma><orth>[SILENCE]</orth></lemma></lexicon>`,
			want: ErrMissingRequiredEntry,
		},
		{
			name: "duplicate phoneme",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>a</symbol></phoneme><phoneme><symbol>a</symbol></phoneme></phoneme-inventory></lexicon>`,
			want: ErrMalformedLexicon,
		},
		{
			name: "bad variation",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>a</symbol><variation>some</variation></phoneme></phoneme-inventory></lexicon>`,
			want: ErrMalformedLexicon,
		},
		{
			name: "duplicate orth",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>si</symbol></phoneme></phoneme-inventory><lemma><orth>[SILENCE]</orth><phon>si</phon></lemma><lemma><orth>[SILENCE]</orth><phon>si</phon></lemma></lexicon>`,
			want: ErrMalformedLexicon,
		},
		{
			name: "bad score",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>si</symbol></phoneme></phoneme-inventory><lemma><orth>[SILENCE]</orth><phon score="x">si</phon></lemma></lexicon>`,
			want: ErrMalformedLexicon,
		},
		{
			name: "truncated",
			xml:  `<lexicon><phoneme-inventory><phoneme><symbol>a`,
			want: ErrMalformedLexicon,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.xml))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"no silence", "x\ta b\n", ErrMissingRequiredEntry},
		{"one field", "[SILENCE]\tsi\nx\n", ErrMalformedLexicon},
		{"bad score", "[SILENCE]\tsi\nx\ta\tfoo\n", ErrMalformedLexicon},
		{"empty pronunciation", "[SILENCE]\tsi\nx\t \n", ErrMalformedLexicon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadText(strings.NewReader(tt.text))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadText err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	lex, err := LoadText(strings.NewReader(testText))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		token string
		want  []string
	}{
		{"ab", []string{"ab"}},
		{"ab/ka", []string{"ab", "ka"}},
		{"ab-ka", []string{"ab", "ka"}},
		{"ab/ka-AB", []string{"ab", "ka", "AB"}},
	}
	for _, tt := range tests {
		lemmas, err := lex.Resolve(tt.token)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.token, err)
			continue
		}
		if len(lemmas) != len(tt.want) {
			t.Errorf("Resolve(%q) = %d lemmas, want %d", tt.token, len(lemmas), len(tt.want))
			continue
		}
		for i := range lemmas {
			if lemmas[i].Orth != tt.want[i] {
				t.Errorf("Resolve(%q)[%d] = %q, want %q", tt.token, i, lemmas[i].Orth, tt.want[i])
			}
		}
	}
}

func TestResolveSlashTakesPrecedence(t *testing.T) {
	lex, err := LoadText(strings.NewReader(testText + "a/b\ta b\n"))
	if err != nil {
		t.Fatal(err)
	}
	// "a/b-ka" is split at '/' only, and "a" is not a lemma.
	_, err = lex.Resolve("a/b-ka")
	var uw *UnresolvedWordError
	if !errors.As(err, &uw) {
		t.Fatalf("Resolve(a/b-ka) err = %v, want UnresolvedWordError", err)
	}
	if uw.Word != "a/b-ka" || uw.Part != "a" {
		t.Errorf("Resolve(a/b-ka) = word %q part %q, want a/b-ka, a", uw.Word, uw.Part)
	}

	lemmas, err := lex.Resolve("a/b")
	if err != nil || len(lemmas) != 1 || lemmas[0].Orth != "a/b" {
		t.Errorf("Resolve(a/b) = %v, %v; want the whole lemma", lemmas, err)
	}
}

func TestResolveUnresolved(t *testing.T) {
	lex, err := LoadText(strings.NewReader(testText))
	if err != nil {
		t.Fatal(err)
	}
	for _, token := range []string{"zz", "ab/zz", "ab-", "zz-ka"} {
		_, err := lex.Resolve(token)
		if !errors.Is(err, ErrUnresolvedWord) {
			t.Errorf("Resolve(%q) err = %v, want ErrUnresolvedWord", token, err)
			continue
		}
		var uw *UnresolvedWordError
		if !errors.As(err, &uw) || uw.Word != token {
			t.Errorf("Resolve(%q) err = %#v", token, err)
		}
	}
}

func TestSuggest(t *testing.T) {
	lex := New(acoustic.NewInventory())
	for _, w := range []string{"hello", "help", "world", SilenceOrth} {
		if err := lex.Add(w, nil); err != nil {
			t.Fatal(err)
		}
	}
	got := lex.Suggest("helo", 2)
	if len(got) == 0 || got[0] != "hello" {
		t.Errorf("Suggest(helo) = %v, want hello first", got)
	}
	for _, s := range got {
		if s == SilenceOrth || s == "world" {
			t.Errorf("Suggest(helo) returned %q", s)
		}
	}
	if got := lex.Suggest("helo", 0); got != nil {
		t.Errorf("Suggest(helo, 0) = %v, want nil", got)
	}
}
