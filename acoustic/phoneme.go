package acoustic

import "fmt"

// Phoneme is a phoneme symbol as it appears in the lexicon inventory.
type Phoneme string

// NoPhoneme is the sentinel for "no phoneme", used for an empty center and
// for context positions beyond the available context.
const NoPhoneme Phoneme = ""

// Variation tells whether a phoneme takes part in context-dependent modeling.
type Variation string

const (
	VariationContext Variation = "context" // default
	VariationNone    Variation = "none"    // silence, noise
)

// ParseVariation parses an inventory variation value. Empty means context.
func ParseVariation(s string) (Variation, error) {
	switch Variation(s) {
	case "", VariationContext:
		return VariationContext, nil
	case VariationNone:
		return VariationNone, nil
	}
	return "", fmt.Errorf("unknown phoneme variation %q", s)
}

// PhonemeInfo describes one inventory entry.
type PhonemeInfo struct {
	Symbol    Phoneme
	Index     int // position in the inventory
	Variation Variation
}

// Inventory is an ordered phoneme set. Indices follow insertion order and
// are the base of every numeric encoding in this module.
type Inventory struct {
	list  []PhonemeInfo
	index map[Phoneme]int
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{index: make(map[Phoneme]int)}
}

// Add appends a phoneme. Symbols must be unique and non-empty.
func (inv *Inventory) Add(symbol Phoneme, variation Variation) error {
	if symbol == NoPhoneme {
		return fmt.Errorf("empty phoneme symbol")
	}
	if _, ok := inv.index[symbol]; ok {
		return fmt.Errorf("duplicate phoneme %q", symbol)
	}
	inv.index[symbol] = len(inv.list)
	inv.list = append(inv.list, PhonemeInfo{
		Symbol:    symbol,
		Index:     len(inv.list),
		Variation: variation,
	})
	return nil
}

// Lookup returns the entry for a symbol.
func (inv *Inventory) Lookup(symbol Phoneme) (PhonemeInfo, bool) {
	i, ok := inv.index[symbol]
	if !ok {
		return PhonemeInfo{}, false
	}
	return inv.list[i], true
}

// Index returns the 0-based inventory index of a symbol.
func (inv *Inventory) Index(symbol Phoneme) (int, bool) {
	i, ok := inv.index[symbol]
	return i, ok
}

// At returns the phoneme at inventory index i.
func (inv *Inventory) At(i int) PhonemeInfo {
	return inv.list[i]
}

// HasContext reports whether symbol is known and has context variation.
func (inv *Inventory) HasContext(symbol Phoneme) bool {
	i, ok := inv.index[symbol]
	return ok && inv.list[i].Variation == VariationContext
}

// Len returns the number of phonemes.
func (inv *Inventory) Len() int {
	return len(inv.list)
}

// Phonemes returns the inventory entries in index order.
func (inv *Inventory) Phonemes() []PhonemeInfo {
	out := make([]PhonemeInfo, len(inv.list))
	copy(out, inv.list)
	return out
}

// Symbols returns the phoneme symbols in index order.
func (inv *Inventory) Symbols() []Phoneme {
	out := make([]Phoneme, len(inv.list))
	for i, p := range inv.list {
		out[i] = p.Symbol
	}
	return out
}
