package multipart

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/kitten/multitars/codecerr"
	"github.com/kitten/multitars/header"
)

// Writer encodes a sequence of Part values as an HTTP
// multipart/form-data body (spec.md §4.8). Parts are written
// synchronously, one at a time.
type Writer struct {
	w          io.Writer
	opts       *options
	boundary   string
	wroteFirst bool
	closed     bool
}

// NewWriter builds a Writer emitting to w. Its boundary id is the
// process-lifetime default unless overridden with WithBoundary.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	o := newOptions(opts)
	b := o.boundary
	if b == "" {
		b = defaultBoundary()
	}
	return &Writer{w: w, opts: o, boundary: b}
}

// ContentType returns the "multipart/form-data; boundary=..." value to
// send as the enclosing HTTP request/response's Content-Type.
func (w *Writer) ContentType() string {
	return "multipart/form-data; boundary=" + w.boundary
}

// WritePart writes p's delimiter, headers and payload.
func (w *Writer) WritePart(p *Part) error {
	if w.closed {
		return codecerr.New(codecerr.ErrBadPrecondition, "multipart: WritePart after Close")
	}
	lead := "--%s\r\n"
	if w.wroteFirst {
		lead = "\r\n--%s\r\n"
	}
	if _, err := fmt.Fprintf(w.w, lead, w.boundary); err != nil {
		return err
	}
	w.wroteFirst = true

	disp := `form-data; name="` + EncodeFilename(p.Name) + `"`
	if p.FileName != "" {
		disp += `; filename="` + EncodeFilename(p.FileName) + `"`
	}
	if err := writeHeaderLine(w.w, header.ContentDisposition, disp); err != nil {
		return err
	}
	if p.ContentType != "" && p.ContentType != defaultContentType {
		if err := writeHeaderLine(w.w, header.ContentType, p.ContentType); err != nil {
			return err
		}
	}
	if p.Size >= 0 {
		if err := writeHeaderLine(w.w, header.ContentLength, strconv.FormatInt(p.Size, 10)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		return err
	}

	var n int64
	var err error
	if p.Payload != nil {
		if p.Size >= 0 {
			n, err = io.CopyN(w.w, p.Payload, p.Size)
			if err != nil && err != io.EOF {
				return err
			}
			if n != p.Size {
				return codecerr.New(codecerr.ErrUnexpectedEOF, "multipart: part %q payload shorter than declared size", p.Name)
			}
		} else {
			n, err = io.Copy(w.w, p.Payload)
			if err != nil {
				return err
			}
		}
	}

	w.opts.rec.EntryYielded(context.Background())
	w.opts.rec.BytesMoved(context.Background(), n)
	return nil
}

// Close writes the closing "--boundary--" delimiter. Calling it again
// is a no-op; WritePart after Close is an error.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	lead := "--%s--\r\n"
	if w.wroteFirst {
		lead = "\r\n--%s--\r\n"
	}
	_, err := fmt.Fprintf(w.w, lead, w.boundary)
	return err
}

func writeHeaderLine(w io.Writer, key, value string) error {
	_, err := fmt.Fprintf(w, "%s: %s\r\n", key, value)
	return err
}
