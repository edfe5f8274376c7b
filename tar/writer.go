package tar

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/kitten/multitars/codecerr"
)

// Writer encodes a sequence of Entry values as a POSIX/GNU/PAX tar
// stream (spec.md §4.6). Entries are written synchronously, one at a
// time — there is no lazy payload protocol on the encode side, since
// nothing downstream needs to interleave with it.
type Writer struct {
	w    io.Writer
	opts *options
}

// NewWriter builds a Writer emitting blockSize-aligned blocks to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	return &Writer{w: w, opts: newOptions(opts)}
}

// WriteEntry writes e's header (splitting or PAX-extending the name
// and link name as needed) followed by its payload, zero-padded to the
// next block boundary.
func (w *Writer) WriteEntry(e *Entry) error {
	name := e.Name
	typeflag := typeflagFor(e.Type)
	if e.Type == TypeDirectory && !strings.HasSuffix(name, "/") {
		name += "/"
	}

	size := e.Size
	if size < 0 {
		return codecerr.New(codecerr.ErrBadNumeric, "tar: negative size for %q", name)
	}
	if e.Type == TypeSymlink {
		// Symlinks carry no wire payload regardless of what the caller
		// attached (spec.md §4.6).
		size = 0
		if e.Payload != nil {
			_, _ = io.Copy(io.Discard, e.Payload)
		}
	}

	prefix, nameField, paxName := splitName(name)
	linkField, paxLink := splitLinkname(e.LinkName)

	mode := e.Mode
	if mode == 0 {
		mode = defaultMode(e.Type)
	}

	if paxName != "" || paxLink != "" {
		records := map[string]string{}
		if paxName != "" {
			records["path"] = paxName
		}
		if paxLink != "" {
			records["linkpath"] = paxLink
		}
		if err := w.writePAXHeader(records); err != nil {
			return err
		}
	}

	mtimeSec := time.Now().Unix()
	if !e.ModTime.IsZero() {
		mtimeSec = e.ModTime.Unix()
	}
	block := encodeBlock(nameField, linkField, prefix, e.Uname, e.Gname,
		mode, e.Uid, e.Gid, size, mtimeSec, e.Devmajor, e.Devminor, typeflag)
	if _, err := w.w.Write(block); err != nil {
		return err
	}

	if size > 0 && e.Payload != nil {
		n, err := io.CopyN(w.w, e.Payload, size)
		if n != size {
			if err == nil {
				err = codecerr.ErrUnexpectedEOF
			}
			return codecerr.Wrapf(err, "tar: payload for %q shorter than declared size", e.Name)
		}
		if err := w.writePad(size); err != nil {
			return err
		}
	}

	w.opts.rec.EntryYielded(context.Background())
	w.opts.rec.BytesMoved(context.Background(), size)
	return nil
}

// Close writes the two all-zero blocks that mark the end of the
// archive (spec.md §4.6).
func (w *Writer) Close() error {
	var zero [blockSize]byte
	if _, err := w.w.Write(zero[:]); err != nil {
		return err
	}
	_, err := w.w.Write(zero[:])
	return err
}

func (w *Writer) writePAXHeader(records map[string]string) error {
	payload := buildPAXBlock(records)
	name := "PaxHeader/" + lastN(records["path"], 99)
	if records["path"] == "" {
		name = "PaxHeader/entry"
	}
	block := encodeBlock(name, "", "", "", "", 0o644, 0, 0, int64(len(payload)), 0, 0, 0, tfPAXLocal)
	if _, err := w.w.Write(block); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	return w.writePad(int64(len(payload)))
}

func (w *Writer) writePad(size int64) error {
	pad := padLen(size)
	if pad == 0 {
		return nil
	}
	zero := make([]byte, pad)
	_, err := w.w.Write(zero)
	return err
}

func typeflagFor(t EntryType) byte {
	switch t {
	case TypeLink:
		return tfLink
	case TypeSymlink:
		return tfSymlink
	case TypeDirectory:
		return tfDirectory
	default:
		return tfRegular
	}
}

func defaultMode(t EntryType) int64 {
	if t == TypeDirectory {
		return 0o755
	}
	return 0o644
}

// splitName implements spec.md §4.6's name-fitting rule: names up to
// 100 bytes go straight in the name field; names up to 256 bytes split
// at a '/' into a <=155 byte prefix and a <=100 byte name; anything
// longer falls back to a PAX "path" record.
func splitName(name string) (prefix, nameField, paxName string) {
	if len(name) <= lenName {
		return "", name, ""
	}
	if len(name) <= lenPrefix+1+lenName {
		if idx := splitPoint(name); idx >= 0 {
			return name[:idx], name[idx+1:], ""
		}
	}
	return "", "PaxHeader/" + lastN(name, 99), name
}

// splitPoint finds the rightmost '/' such that both halves fit their
// respective USTAR fields.
func splitPoint(name string) int {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] != '/' {
			continue
		}
		if i <= lenPrefix && len(name)-i-1 <= lenName {
			return i
		}
	}
	return -1
}

func splitLinkname(link string) (field, pax string) {
	if link == "" {
		return "", ""
	}
	if len(link) <= lenLinkname {
		return link, ""
	}
	return lastN(link, lenLinkname), link
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
