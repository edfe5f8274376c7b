// Package blockio implements the fixed-blocksize paged reader with
// pushback/rewind described in spec.md §4.2: the piece that turns an
// arbitrary chunked bytesource.Source into a reader that can hand back
// whole blocks, arbitrary-sized pulls, and undo a bounded amount of
// consumption.
//
// A Reader owns three logical sources of bytes, drained in order on
// every call: the pushback region, the current input slice, and the
// next chunk from the underlying Source. Only one of those three is
// ever the active supplier at a given instant; callers never see that
// distinction.
package blockio

import (
	"fmt"
	"io"

	"github.com/kitten/multitars/bytesource"
	"github.com/kitten/multitars/codecerr"
)

// Reader is a block-wise, pushback-capable reader over a
// bytesource.Source. It is not safe for concurrent use — the pipelines
// built on it are single-threaded and cooperative (spec.md §5).
type Reader struct {
	blockSize int
	src       bytesource.Source

	block []byte // scratch buffer, length blockSize, reused by Read's slow path
	pbuf  []byte // pending pushed-back bytes, consumed front-first

	cur []byte // remaining bytes of the most recently fetched source chunk
	eof bool    // true once the source has reported io.EOF

	lastReturned []byte // the slice most recently handed to the caller, for Pushback
}

// New returns a Reader with the given block size, reading from src.
func New(src bytesource.Source, blockSize int) *Reader {
	if blockSize <= 0 {
		panic("blockio: blockSize must be positive")
	}
	return &Reader{
		blockSize: blockSize,
		src:       src,
		block:     make([]byte, blockSize),
	}
}

// BlockSize returns the reader's configured block size B.
func (r *Reader) BlockSize() int { return r.blockSize }

// Close releases the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

// Pull returns up to maxSize bytes without copying when possible. It
// returns io.EOF once no bytes remain. maxSize <= 0 means "up to one
// block".
func (r *Reader) Pull(maxSize int) (bytesource.Chunk, error) {
	if maxSize <= 0 {
		maxSize = r.blockSize
	}
	for {
		if len(r.pbuf) > 0 {
			n := minInt(len(r.pbuf), maxSize)
			out := r.pbuf[:n]
			r.pbuf = r.pbuf[n:]
			r.lastReturned = out
			return out, nil
		}
		if len(r.cur) > 0 {
			n := minInt(len(r.cur), maxSize)
			out := r.cur[:n]
			r.cur = r.cur[n:]
			r.lastReturned = out
			return out, nil
		}
		if r.eof {
			r.lastReturned = nil
			return nil, io.EOF
		}
		chunk, err := r.src.Next()
		if err != nil {
			if err == io.EOF {
				r.eof = true
				continue
			}
			r.lastReturned = nil
			return nil, err
		}
		if len(chunk) == 0 {
			continue // zero-length chunk: try again
		}
		r.cur = chunk
	}
}

// Read returns exactly BlockSize bytes, or — if allowPartialEnd — a
// shorter trailing slice at EOF, or nil if no bytes remain and a full
// block was required. The returned slice is valid only until the next
// call on this Reader.
//
// If a full block cannot be filled and allowPartialEnd is false, the
// partial bytes already pulled from the source are pushed back so a
// subsequent Pull sees them untouched.
func (r *Reader) Read(allowPartialEnd bool) (bytesource.Chunk, error) {
	// Zero-copy fast path: the current chunk alone can satisfy the
	// whole block and there's nothing pending ahead of it.
	if len(r.pbuf) == 0 && len(r.cur) >= r.blockSize {
		out := r.cur[:r.blockSize]
		r.cur = r.cur[r.blockSize:]
		r.lastReturned = out
		return out, nil
	}

	filled := 0
	var fillErr error
	for filled < r.blockSize {
		c, err := r.Pull(r.blockSize - filled)
		filled += copy(r.block[filled:], c)
		if err != nil {
			fillErr = err
			break
		}
	}

	if filled == r.blockSize {
		r.lastReturned = r.block[:r.blockSize]
		return r.lastReturned, nil
	}
	if filled == 0 {
		r.lastReturned = nil
		if fillErr == io.EOF {
			return nil, io.EOF
		}
		return nil, fillErr
	}
	if fillErr != io.EOF {
		// A genuine error, not a clean end: the source aborted mid-block,
		// so there's nothing left to push back.
		r.lastReturned = nil
		return nil, fillErr
	}
	if allowPartialEnd {
		r.lastReturned = r.block[:filled]
		return r.lastReturned, nil
	}
	// Partial at a clean EOF, not allowed: the source ended mid-block,
	// distinct from ending cleanly on a block boundary.
	r.unconsume(r.block[:filled])
	r.lastReturned = nil
	return nil, codecerr.ErrUnexpectedEOF
}

// Skip discards up to n bytes, returning how many could not be
// skipped (0 on success, >0 at EOF).
func (r *Reader) Skip(n int) int {
	for n > 0 {
		c, err := r.Pull(n)
		if err != nil {
			return n
		}
		n -= len(c)
	}
	return 0
}

// Pushback re-inserts the last k bytes of the most recently returned
// slice (from Read or Pull) at the front of the logical stream. k must
// not exceed the length of that slice, and the total pending pushback
// must not exceed BlockSize — violating either is a programmer error.
func (r *Reader) Pushback(k int) {
	if k == 0 {
		return
	}
	if k < 0 || k > len(r.lastReturned) {
		panic(fmt.Sprintf("blockio: pushback(%d) exceeds last returned length %d", k, len(r.lastReturned)))
	}
	r.unconsume(r.lastReturned[len(r.lastReturned)-k:])
	r.lastReturned = nil
}

// Rewind is an alias for Pushback, named per the alternative strategy
// spec.md §4.2 describes (repositioning a cursor vs. copying into a
// reserved tail); this implementation always copies, so the two names
// are equivalent here.
func (r *Reader) Rewind(k int) { r.Pushback(k) }

// unconsume prepends b to the pending pushback region, copying so the
// caller's (possibly reused) backing array can't corrupt it later.
func (r *Reader) unconsume(b []byte) {
	if len(b)+len(r.pbuf) > r.blockSize {
		panic(codecerr.New(codecerr.ErrBadPrecondition,
			"blockio: pushback of %d bytes exceeds block capacity %d", len(b)+len(r.pbuf), r.blockSize).Error())
	}
	combined := make([]byte, 0, len(b)+len(r.pbuf))
	combined = append(combined, b...)
	combined = append(combined, r.pbuf...)
	r.pbuf = combined
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
