package header

import (
	"bytes"
	"io"
	"strings"

	"github.com/kitten/multitars/blockio"
	"github.com/kitten/multitars/codecerr"
)

// ReadHeader reads CRLF- (or bare LF-) terminated "Name: Value" lines
// from r until a blank line, per spec.md §4.7.b: each line capped at
// maxLineLen bytes, the whole header section capped at maxTotalLen.
// A line with no ':' is fatal (codecerr.ErrBadHeader). Header names
// are canonicalized; values are trimmed of surrounding whitespace.
func ReadHeader(r *blockio.Reader, maxLineLen, maxTotalLen int) (Header, error) {
	h := make(Header)
	total := 0
	for {
		line, err := readLine(r, maxLineLen)
		if err != nil {
			return nil, err
		}
		total += len(line)
		if total > maxTotalLen {
			return nil, codecerr.New(codecerr.ErrLimitExceeded,
				"header: total header bytes exceed %d", maxTotalLen)
		}
		trimmed := trimCRLF(line)
		if len(trimmed) == 0 {
			return h, nil // blank line: end of header section
		}
		idx := bytes.IndexByte(trimmed, ':')
		if idx < 0 {
			return nil, codecerr.New(codecerr.ErrBadHeader,
				"header: line %q has no ':'", trimmed)
		}
		key := CanonicalKey(strings.TrimSpace(string(trimmed[:idx])))
		value := trimString(string(trimmed[idx+1:]))
		h.Add(key, value)
	}
}

// readLine pulls bytes from r until a '\n' (inclusive) is found or
// maxLen is exceeded. Any bytes pulled past the newline are pushed
// back onto r.
func readLine(r *blockio.Reader, maxLen int) ([]byte, error) {
	var buf []byte
	for {
		want := maxLen + 1 - len(buf)
		if want <= 0 {
			return nil, codecerr.New(codecerr.ErrLimitExceeded,
				"header: line exceeds %d bytes", maxLen)
		}
		chunk, err := r.Pull(want)
		if err != nil {
			if err == io.EOF {
				return nil, codecerr.ErrUnexpectedEOF
			}
			return nil, err
		}
		if idx := bytes.IndexByte(chunk, '\n'); idx >= 0 {
			extra := len(chunk) - (idx + 1)
			if extra > 0 {
				r.Pushback(extra)
			}
			buf = append(buf, chunk[:idx+1]...)
			if len(buf) > maxLen {
				return nil, codecerr.New(codecerr.ErrLimitExceeded,
					"header: line exceeds %d bytes", maxLen)
			}
			return buf, nil
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLen {
			return nil, codecerr.New(codecerr.ErrLimitExceeded,
				"header: line exceeds %d bytes", maxLen)
		}
	}
}

func trimCRLF(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
