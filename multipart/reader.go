package multipart

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/kitten/multitars/blockio"
	"github.com/kitten/multitars/boundary"
	"github.com/kitten/multitars/bytesource"
	"github.com/kitten/multitars/codecerr"
	"github.com/kitten/multitars/facade"
	"github.com/kitten/multitars/header"
)

var boundaryParamRe = regexp.MustCompile(`(?i)boundary="?([^=";]+)"?`)

// Reader decodes an HTTP multipart/form-data body into a sequence of
// Part values (spec.md §4.7). Parts must be consumed in order; calling
// Next again before the previous part's payload is fully read or
// closed skips the remainder automatically.
type Reader struct {
	br       *blockio.Reader
	opts     *options
	boundary string // the raw id, without leading dashes
	b0       []byte // "--" + boundary: the very first delimiter in the body
	bt       []byte // "\r\n--" + boundary: every subsequent delimiter

	started bool
	cur     *Part
	atEOF   bool
}

// BoundaryFromContentType extracts the boundary parameter from a
// Content-Type header value, e.g. "multipart/form-data; boundary=xyz".
func BoundaryFromContentType(contentType string) (string, error) {
	m := boundaryParamRe.FindStringSubmatch(contentType)
	if m == nil {
		return "", codecerr.New(codecerr.ErrBadBoundary, "multipart: no boundary parameter in %q", contentType)
	}
	return m[1], nil
}

// NewReader builds a Reader over src using the boundary extracted from
// contentType.
func NewReader(src bytesource.Source, contentType string, opts ...Option) (*Reader, error) {
	b, err := BoundaryFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	return NewReaderWithBoundary(src, b, opts...)
}

// NewReaderWithBoundary builds a Reader given an already-extracted
// boundary id.
func NewReaderWithBoundary(src bytesource.Source, boundaryID string, opts ...Option) (*Reader, error) {
	o := newOptions(opts)
	r := &Reader{
		br:       blockio.New(src, o.blockSize),
		opts:     o,
		boundary: boundaryID,
		b0:       []byte("--" + boundaryID),
		bt:       []byte("\r\n--" + boundaryID),
	}
	return r, nil
}

// Next advances to and returns the next part. It returns io.EOF once
// the closing "--boundary--" delimiter has been consumed.
func (r *Reader) Next() (*Part, error) {
	if r.atEOF {
		return nil, io.EOF
	}
	if r.cur != nil {
		if err := r.cur.Close(); err != nil {
			return nil, err
		}
		r.cur = nil
	}

	if !r.started {
		r.started = true
		if err := r.scanPreamble(); err != nil {
			return nil, err
		}
	}

	done, err := r.checkTerminatorOrSeparator()
	if err != nil {
		return nil, err
	}
	if done {
		r.atEOF = true
		return nil, io.EOF
	}

	h, err := header.ReadHeader(r.br, r.opts.maxHeaderLine, r.opts.maxHeaderSize)
	if err != nil {
		return nil, err
	}

	part, err := r.buildPart(h)
	if err != nil {
		return nil, err
	}
	r.cur = part
	r.opts.rec.EntryYielded(context.Background())
	return part, nil
}

// scanPreamble discards everything up to and including the first
// "--boundary" delimiter, capped at maxPreamble bytes (spec.md
// §4.7.a).
func (r *Reader) scanPreamble() error {
	s, err := boundary.NewScanner(r.br, r.b0)
	if err != nil {
		return err
	}
	total := 0
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		total += len(chunk)
		if total > r.opts.maxPreamble {
			return codecerr.New(codecerr.ErrLimitExceeded, "multipart: preamble exceeds %d bytes", r.opts.maxPreamble)
		}
	}
}

// checkTerminatorOrSeparator reads the two bytes immediately following
// a delimiter: "--" means the archive is over, "\r\n" means another
// part's headers follow immediately.
func (r *Reader) checkTerminatorOrSeparator() (done bool, err error) {
	chunk, err := r.br.Pull(2)
	if err != nil {
		return false, codecerr.ErrUnexpectedEOF
	}
	if len(chunk) < 2 {
		extra, err2 := r.br.Pull(2 - len(chunk))
		if err2 != nil {
			return false, codecerr.ErrUnexpectedEOF
		}
		chunk = append(append([]byte(nil), chunk...), extra...)
	}
	switch {
	case bytes.Equal(chunk, []byte("--")):
		return true, nil
	case bytes.Equal(chunk, []byte("\r\n")):
		return false, nil
	default:
		return false, codecerr.New(codecerr.ErrBadBoundary, "multipart: unexpected bytes %q after delimiter", chunk)
	}
}

func (r *Reader) buildPart(h header.Header) (*Part, error) {
	cd := h.Get(header.ContentDisposition)
	kind, params, err := contentDispositionParams(cd)
	if err != nil {
		return nil, codecerr.Wrapf(err, "multipart: bad Content-Disposition")
	}
	if !strings.EqualFold(kind, "form-data") {
		return nil, codecerr.New(codecerr.ErrBadHeader, "multipart: Content-Disposition is %q, want form-data", kind)
	}

	ct := h.Get(header.ContentType)
	if ct == "" {
		ct = defaultContentType
	}

	part := &Part{
		Name:        params["name"],
		FileName:    params["filename"],
		ContentType: ct,
		Header:      h,
		Size:        -1,
	}
	if part.Name == "" && part.FileName == "" {
		return nil, codecerr.New(codecerr.ErrBadHeader,
			"multipart: Content-Disposition missing both name and filename")
	}

	if cl := h.Get(header.ContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, codecerr.New(codecerr.ErrBadNumeric, "multipart: bad Content-Length %q", cl)
		}
		part.Size = n
		payload := &sizedPayload{br: r.br, remaining: n, verify: r.verifyTrailer}
		cancel := func() error { return r.cancelSized(payload) }
		part.Payload = facade.New(payload, cancel)
		return part, nil
	}

	sc, err := boundary.NewScanner(r.br, r.bt)
	if err != nil {
		return nil, err
	}
	payload := &scannedPayload{sc: sc}
	cancel := func() error { return r.cancelScanned(payload) }
	part.Payload = facade.New(payload, cancel)
	return part, nil
}

// cancelSized skips whatever is left of a Content-Length-bounded
// payload and then verifies the trailing delimiter (spec.md §4.7.d).
func (r *Reader) cancelSized(p *sizedPayload) error {
	if p.remaining > 0 {
		if left := r.br.Skip(int(p.remaining)); left > 0 {
			p.remaining = 0
			return codecerr.ErrUnexpectedEOF
		}
		p.remaining = 0
	}
	if p.trailerDone {
		return nil
	}
	p.trailerDone = true
	return r.verifyTrailer()
}

func (r *Reader) verifyTrailer() error {
	got, err := r.br.Pull(len(r.bt))
	if err != nil {
		return codecerr.ErrUnexpectedEOF
	}
	if len(got) < len(r.bt) {
		rest, err := r.br.Pull(len(r.bt) - len(got))
		if err != nil {
			return codecerr.ErrUnexpectedEOF
		}
		got = append(append([]byte(nil), got...), rest...)
	}
	if !bytes.Equal(got, r.bt) {
		return codecerr.New(codecerr.ErrBadBoundary, "multipart: Content-Length payload not followed by boundary delimiter")
	}
	return nil
}

// cancelScanned drains a boundary-delimited payload to completion
// (spec.md §4.7.e).
func (r *Reader) cancelScanned(p *scannedPayload) error {
	for {
		_, err := p.sc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// sizedPayload is the lazy byte sequence for a Content-Length-bounded
// part. Reaching the declared size inline-verifies the trailing
// boundary delimiter, so a caller that reads to completion (rather
// than cancelling early) still leaves the reader correctly positioned.
type sizedPayload struct {
	br          *blockio.Reader
	remaining   int64
	verify      func() error
	trailerDone bool
}

func (p *sizedPayload) Read(buf []byte) (int, error) {
	if p.remaining <= 0 {
		if !p.trailerDone {
			p.trailerDone = true
			if err := p.verify(); err != nil {
				return 0, err
			}
		}
		return 0, io.EOF
	}
	want := int64(len(buf))
	if want > p.remaining {
		want = p.remaining
	}
	c, err := p.br.Pull(int(want))
	if err != nil {
		return 0, err
	}
	n := copy(buf, c)
	p.remaining -= int64(n)
	return n, nil
}

// scannedPayload is the lazy byte sequence for a boundary-delimited
// part with no declared length.
type scannedPayload struct {
	sc  *boundary.Scanner
	buf []byte
}

func (p *scannedPayload) Read(out []byte) (int, error) {
	for len(p.buf) == 0 {
		chunk, err := p.sc.Next()
		if err != nil {
			return 0, err
		}
		p.buf = chunk
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}
