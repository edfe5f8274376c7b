// Package boundary implements the Boyer–Moore-style literal-pattern
// search described in spec.md §4.3: a lazy sequence of pre-boundary
// byte slices over a blockio.Reader, tolerant of the pattern straddling
// a block seam and of self-overlapping patterns.
package boundary

// Table is a bad-character skip table for a fixed pattern. NewTable
// fills it in full up front; NewScanner builds a fresh one for each
// Scanner.
type Table struct {
	pattern []byte
	skip    [256]int
}

// NewTable builds the skip table for pattern. Each of the 256 byte
// values maps to either len(pattern) (the byte doesn't occur in the
// pattern) or len(pattern)-1-lastIndex, the distance from the last
// occurrence of that byte to the end of the pattern.
func NewTable(pattern []byte) *Table {
	m := len(pattern)
	t := &Table{pattern: append([]byte(nil), pattern...)}
	for i := range t.skip {
		t.skip[i] = m
	}
	for i := 0; i < m; i++ {
		t.skip[pattern[i]] = m - 1 - i
	}
	return t
}

// Pattern returns the literal byte pattern this table was built for.
func (t *Table) Pattern() []byte { return t.pattern }
