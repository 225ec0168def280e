// Package statetying maps allophone states to tied training classes.
package statetying

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ieee0824/phoneseq-go/acoustic"
)

var (
	// ErrMalformedStateTying is returned for unparsable lines, duplicate
	// states, and class ids that do not form the range [0, n).
	ErrMalformedStateTying = errors.New("malformed state tying")

	// ErrUnknownAllophoneState is returned by ClassFor for states absent
	// from the table.
	ErrUnknownAllophoneState = errors.New("unknown allophone state")
)

// Tying is a many-to-one mapping from allophone states to class ids.
// It is read-only after loading and safe for concurrent readers.
type Tying struct {
	classOf map[acoustic.Key]int
	members [][]string // class id -> canonical state strings
}

// Load reads a state tying table: one "<allophone-state> <class>" per line.
func Load(r io.Reader) (*Tying, error) {
	st := &Tying{classOf: make(map[acoustic.Key]int)}
	byClass := make(map[int][]string)
	maxClass := -1

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: expected 2 fields, got %d",
				ErrMalformedStateTying, lineNum, len(fields))
		}
		class, err := strconv.Atoi(fields[1])
		if err != nil || class < 0 {
			return nil, fmt.Errorf("%w: line %d: bad class id %q", ErrMalformedStateTying, lineNum, fields[1])
		}
		state, err := acoustic.ParseAllophoneState(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedStateTying, lineNum, err)
		}
		key := state.Key()
		if _, dup := st.classOf[key]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate state %s", ErrMalformedStateTying, lineNum, fields[0])
		}
		st.classOf[key] = class
		byClass[class] = append(byClass[class], fields[0])
		if class > maxClass {
			maxClass = class
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(byClass) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMalformedStateTying)
	}
	if maxClass != len(byClass)-1 {
		return nil, fmt.Errorf("%w: %d classes but max class id %d, some classes are not represented",
			ErrMalformedStateTying, len(byClass), maxClass)
	}
	st.members = make([][]string, len(byClass))
	for c, m := range byClass {
		sort.Strings(m)
		st.members[c] = m
	}
	return st, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Tying, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// NumClasses returns the number of tied classes.
func (st *Tying) NumClasses() int {
	return len(st.members)
}

// ClassFor returns the class of an allophone state.
func (st *Tying) ClassFor(a acoustic.AllophoneState) (int, error) {
	c, ok := st.classOf[a.Key()]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAllophoneState, a.Format())
	}
	return c, nil
}

// ClassLabels returns one label per class: the sorted canonical strings of
// its member states joined by '|'.
func (st *Tying) ClassLabels() []string {
	out := make([]string, len(st.members))
	for c, m := range st.members {
		out[c] = strings.Join(m, "|")
	}
	return out
}

// Members returns the canonical strings tied to class c.
func (st *Tying) Members(c int) []string {
	if c < 0 || c >= len(st.members) {
		return nil
	}
	return append([]string(nil), st.members[c]...)
}
