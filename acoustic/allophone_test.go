package acoustic

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		s    AllophoneState
		want string
	}{
		{AllophoneState{ID: "k", History: []Phoneme{"a"}, Future: []Phoneme{"u"}, State: 1}, "k{a+u}.1"},
		{AllophoneState{ID: "si", Boundary: BoundaryInitial | BoundaryFinal}, "si{#+#}@i@f.0"},
		{AllophoneState{ID: "a", Future: []Phoneme{"b"}, Boundary: BoundaryInitial, State: 2}, "a{#+b}@i.2"},
		{AllophoneState{ID: "b", History: []Phoneme{"a", "k"}, Boundary: BoundaryFinal}, "b{a-k+#}@f.0"},
	}
	for _, tt := range tests {
		if got := tt.s.Format(); got != tt.want {
			t.Errorf("Format() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseAllophoneState(t *testing.T) {
	for _, s := range []string{
		"k{a+u}.1",
		"si{#+#}@i@f.0",
		"a{#+b}@i.2",
		"b{a-k+#}@f.0",
		"{#+#}.0",
	} {
		a, err := ParseAllophoneState(s)
		if err != nil {
			t.Errorf("ParseAllophoneState(%q): %v", s, err)
			continue
		}
		if got := a.Format(); got != s {
			t.Errorf("Format(Parse(%q)) = %q", s, got)
		}
	}
}

func TestParseAllophoneStateErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"k",
		"k{a-u}.1",
		"k{a+u}",
		"k{a+u}.x",
		"k{a+u}.-1",
		"k{a+u}@f@i.0",
		"k{a-+u}.0",
		"k{a+u}@x.0",
	} {
		if _, err := ParseAllophoneState(s); err == nil {
			t.Errorf("ParseAllophoneState(%q) succeeded, want error", s)
		}
	}
}

func TestKeyDistinguishesAmbiguousFormats(t *testing.T) {
	// Both format as "x{a-b+#}.0".
	a := AllophoneState{ID: "x", History: []Phoneme{"a-b"}}
	b := AllophoneState{ID: "x", History: []Phoneme{"a", "b"}}
	if a.Format() != b.Format() {
		t.Fatalf("expected identical formats, got %q and %q", a.Format(), b.Format())
	}
	if a.Key() == b.Key() {
		t.Error("Key() collides for structurally different states")
	}
	c := AllophoneState{ID: "x", History: []Phoneme{"a", "b"}}
	if b.Key() != c.Key() {
		t.Error("Key() differs for equal states")
	}
}

func TestPhonemeOffset(t *testing.T) {
	a := AllophoneState{ID: "c", History: []Phoneme{"b", "a"}, Future: []Phoneme{"d"}}
	tests := []struct {
		off  int
		want Phoneme
	}{
		{-3, NoPhoneme},
		{-2, "a"},
		{-1, "b"},
		{0, "c"},
		{1, "d"},
		{2, NoPhoneme},
	}
	for _, tt := range tests {
		if got := a.Phoneme(tt.off); got != tt.want {
			t.Errorf("Phoneme(%d) = %q, want %q", tt.off, got, tt.want)
		}
	}
}

func TestSafeSymbol(t *testing.T) {
	tests := []struct {
		p    Phoneme
		want bool
	}{
		{"a", true},
		{"ng", true},
		{"[NOISE]", true},
		{"a-b", false},
		{"#", false},
		{"x.y", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SafeSymbol(tt.p); got != tt.want {
			t.Errorf("SafeSymbol(%q) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestInventory(t *testing.T) {
	inv := testInventory(t)
	if inv.Len() != 4 {
		t.Fatalf("Len = %d, want 4", inv.Len())
	}
	if i, ok := inv.Index("k"); !ok || i != 2 {
		t.Errorf("Index(k) = %d, %v; want 2, true", i, ok)
	}
	if inv.HasContext("si") {
		t.Error("si should not have context variation")
	}
	if !inv.HasContext("a") {
		t.Error("a should have context variation")
	}
	if err := inv.Add("a", VariationContext); err == nil {
		t.Error("duplicate Add succeeded")
	}
	if _, err := ParseVariation("partial"); err == nil {
		t.Error("ParseVariation(partial) succeeded")
	}
	if v, err := ParseVariation(""); err != nil || v != VariationContext {
		t.Errorf("ParseVariation(\"\") = %q, %v", v, err)
	}
}

func TestFormatContextOrder(t *testing.T) {
	a, err := ParseAllophoneState("c{b-a+d-e}.1")
	if err != nil {
		t.Fatal(err)
	}
	for offset, want := range map[int]Phoneme{-2: "a", -1: "b", 0: "c", 1: "d", 2: "e"} {
		if got := a.Phoneme(offset); got != want {
			t.Errorf("Phoneme(%d) = %q, want %q", offset, got, want)
		}
	}
}
