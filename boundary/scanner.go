package boundary

import (
	"bytes"
	"io"

	"github.com/kitten/multitars/blockio"
	"github.com/kitten/multitars/codecerr"
)

// Scanner is a one-shot, lazy sequence of byte slices: every byte up
// to (but not including) the first occurrence of a literal pattern.
// Call Next repeatedly until it returns io.EOF (the boundary was found
// and consumed; the underlying Reader is now positioned just past it)
// or codecerr.ErrUnexpectedEOF (the source ran out before the pattern
// was ever found — spec.md §4.3's "yield a trailing null sentinel",
// which in this Go rendering is a distinguishable fatal error rather
// than a literal nil value).
type Scanner struct {
	r     *blockio.Reader
	table *Table
	m     int

	done    bool
	pending []byte // unresolved tail bytes from the previous block, held for seam verification
}

// NewScanner builds a Scanner searching r for pattern. Fails precondition
// if the pattern is longer than r's block size.
func NewScanner(r *blockio.Reader, pattern []byte) (*Scanner, error) {
	if len(pattern) > r.BlockSize() {
		return nil, codecerr.New(codecerr.ErrBadPrecondition,
			"boundary: pattern length %d exceeds block size %d", len(pattern), r.BlockSize())
	}
	return &Scanner{r: r, table: NewTable(pattern), m: len(pattern)}, nil
}

// Next returns the next chunk of pre-boundary bytes, or an error per
// the doc comment on Scanner. A returned chunk is owned by the caller
// (always freshly allocated, never a view into the reader's buffer).
func (s *Scanner) Next() ([]byte, error) {
	for {
		if s.done {
			return nil, io.EOF
		}
		if len(s.pending) > 0 {
			out, err, consumed := s.resolvePending()
			if consumed {
				continue
			}
			return out, err
		}
		out, err, consumed := s.scanFreshBlock()
		if consumed {
			continue
		}
		return out, err
	}
}

// resolvePending fetches the next block and tries to complete a match
// that was left unresolved at the end of the previous block. consumed
// being true means "loop again, nothing to return yet".
func (s *Scanner) resolvePending() (out []byte, err error, consumed bool) {
	blk, rerr := s.r.Read(true)
	if len(blk) == 0 {
		if rerr == io.EOF {
			s.done = true
			return nil, codecerr.ErrUnexpectedEOF, false
		}
		return nil, rerr, false
	}

	need := s.m - len(s.pending)
	if need < 0 {
		need = 0
	}
	if len(blk) < need {
		// Only possible at true EOF: not enough bytes left to ever
		// complete verification of the pending tail against the
		// pattern.
		s.done = true
		return nil, codecerr.ErrUnexpectedEOF, false
	}

	candidate := append(append([]byte(nil), s.pending...), blk[:need]...)
	if bytes.Equal(candidate, s.table.pattern) {
		s.r.Pushback(len(blk) - need)
		s.pending = nil
		s.done = true
		return nil, io.EOF, false
	}

	// Not a match after all: the held-back bytes are genuine body data,
	// and blk must be scanned fresh from its own start (spec.md §4.3).
	carry := s.pending
	s.pending = nil
	safeLen, tailLen, matched, matchStart := scanBlock(blk, s.table)
	if matched {
		s.r.Pushback(len(blk) - (matchStart + s.m))
		s.done = true
		if matchStart == 0 && len(carry) == 0 {
			return nil, io.EOF, false
		}
		return append(carry, blk[:matchStart]...), nil, false
	}
	if tailLen > 0 {
		s.pending = append([]byte(nil), blk[safeLen:]...)
	}
	if safeLen == 0 && len(carry) == 0 {
		return nil, nil, true
	}
	return append(carry, blk[:safeLen]...), nil, false
}

// scanFreshBlock fetches and scans a block with no pending carry-over.
func (s *Scanner) scanFreshBlock() (out []byte, err error, consumed bool) {
	blk, rerr := s.r.Read(true)
	if len(blk) == 0 {
		if rerr == io.EOF {
			s.done = true
			return nil, codecerr.ErrUnexpectedEOF, false
		}
		return nil, rerr, false
	}

	safeLen, tailLen, matched, matchStart := scanBlock(blk, s.table)
	if matched {
		s.r.Pushback(len(blk) - (matchStart + s.m))
		s.done = true
		if matchStart == 0 {
			return nil, io.EOF, false
		}
		return append([]byte(nil), blk[:matchStart]...), nil, false
	}
	if tailLen > 0 {
		s.pending = append([]byte(nil), blk[safeLen:]...)
	}
	if safeLen == 0 {
		return nil, nil, true
	}
	return append([]byte(nil), blk[:safeLen]...), nil, false
}

// scanBlock runs the bad-character Boyer–Moore scan over buf looking
// for a full occurrence of t.pattern. If none is found, it additionally
// checks whether a suffix of buf overlaps a prefix of the pattern
// (the bytes that must be held back and re-verified against the next
// block) — this check, not the skip-table walk, is what determines
// safeLen: it must hold regardless of which alignments the walk
// actually visited.
func scanBlock(buf []byte, t *Table) (safeLen, tailLen int, matched bool, matchStart int) {
	m := len(t.pattern)
	n := len(buf)
	s := 0
	for s+m <= n {
		last := buf[s+m-1]
		if last == t.pattern[m-1] {
			if bytes.Equal(buf[s:s+m], t.pattern) {
				return 0, 0, true, s
			}
			// Self-overlapping patterns require a 1-byte advance on a
			// failed full verification, not a skip-table jump.
			s++
		} else {
			shift := t.skip[last]
			if shift < 1 {
				shift = 1
			}
			s += shift
		}
	}

	maxOverlap := m - 1
	if maxOverlap > n {
		maxOverlap = n
	}
	for l := maxOverlap; l >= 1; l-- {
		if bytes.Equal(buf[n-l:], t.pattern[:l]) {
			return n - l, l, false, -1
		}
	}
	return n, 0, false, -1
}
