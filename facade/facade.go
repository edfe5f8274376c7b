// Package facade implements the per-entry presentation shared by the
// tar and multipart pipelines (spec.md §4.9 EntryFacade): a one-shot
// byte sequence plus AsBytes/AsText/AsJSON convenience accessors,
// implemented by composing over a byte sequence rather than through a
// class hierarchy — per spec.md §9's explicit design note.
package facade

import (
	"encoding/json"
	"io"
	"unicode/utf8"
)

// Facade wraps a single-pass payload reader with a cancel hook. Tar
// entries and multipart parts each construct their own Facade around
// their own lazy byte sequence (padded, block-backed for tar;
// sized-or-boundary-terminated for multipart); the cancel hook is
// where each pipeline's own skip-and-advance protocol lives.
type Facade struct {
	r      io.Reader
	cancel func() error
	locked bool
	closed bool
}

// New builds a Facade around r. cancel is invoked at most once, the
// first time the facade is closed or abandoned without being fully
// read; it is responsible for leaving the underlying reader correctly
// positioned at the next entry.
func New(r io.Reader, cancel func() error) *Facade {
	return &Facade{r: r, cancel: cancel}
}

// Read implements io.Reader. The first call locks the facade: once
// locked, cancellation must go through the cancel hook rather than
// being skipped as a no-op, because some bytes may already be
// irretrievably consumed from the underlying block reader.
func (f *Facade) Read(p []byte) (int, error) {
	if f.closed {
		return 0, io.EOF
	}
	f.locked = true
	n, err := f.r.Read(p)
	if err == io.EOF {
		f.closed = true
	}
	return n, err
}

// Locked reports whether any bytes have been read yet.
func (f *Facade) Locked() bool { return f.locked }

// Close cancels the payload if it hasn't been fully drained yet. Safe
// to call multiple times and safe to call after the payload has been
// fully read.
func (f *Facade) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.cancel == nil {
		return nil
	}
	return f.cancel()
}

// AsBytes reads the payload to completion and returns it as a single
// slice.
func (f *Facade) AsBytes() ([]byte, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	f.closed = true
	return b, nil
}

// AsText reads the payload to completion and validates it as UTF-8.
func (f *Facade) AsText() (string, error) {
	b, err := f.AsBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errInvalidUTF8
	}
	return string(b), nil
}

// AsJSON reads the payload to completion and unmarshals it into v.
func (f *Facade) AsJSON(v interface{}) error {
	b, err := f.AsBytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

var errInvalidUTF8 = invalidUTF8Error{}

type invalidUTF8Error struct{}

func (invalidUTF8Error) Error() string { return "facade: payload is not valid UTF-8" }
