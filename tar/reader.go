package tar

import (
	"context"
	"io"
	"strings"

	"github.com/kitten/multitars/blockio"
	"github.com/kitten/multitars/bytesource"
	"github.com/kitten/multitars/codecerr"
	"github.com/kitten/multitars/facade"
)

// Reader decodes a POSIX/GNU/PAX tar stream into a sequence of Entry
// values (spec.md §4.5). Entries must be consumed in order; calling
// Next again before the previous entry's payload is fully read or
// closed skips the remainder automatically.
type Reader struct {
	br     *blockio.Reader
	opts   *options
	global globalExtended

	pendingLongName string
	hasLongName     bool
	pendingLongLink string
	hasLongLink     bool
	pendingLocal    map[string]string

	cur   *Entry
	atEOF bool
}

// NewReader builds a Reader pulling blockSize-aligned blocks from src.
func NewReader(src bytesource.Source, opts ...Option) *Reader {
	return &Reader{
		br:   blockio.New(src, blockSize),
		opts: newOptions(opts),
	}
}

// Next advances to and returns the next entry. It returns io.EOF once
// the archive's end-of-archive marker has been reached.
func (r *Reader) Next() (*Entry, error) {
	if r.atEOF {
		return nil, io.EOF
	}
	if r.cur != nil {
		if err := r.cur.Close(); err != nil {
			return nil, err
		}
		r.cur = nil
	}

	for {
		block, err := r.br.Read(false)
		if err == io.EOF {
			r.atEOF = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		if isAllZero(block) {
			r.atEOF = true
			return nil, io.EOF
		}
		if !hasUSTARMagic(block) {
			return nil, codecerr.New(codecerr.ErrBadHeader, "tar: unexpected non-header block")
		}

		h, err := decodeBlock(block, r.opts.log)
		if err != nil {
			return nil, err
		}

		switch h.typeflag {
		case tfPAXLocal:
			data, err := r.readFullPayload(h.effectiveSize())
			if err != nil {
				return nil, err
			}
			r.pendingLocal = parsePAXRecords(data)
			continue
		case tfPAXGlobal:
			data, err := r.readFullPayload(h.effectiveSize())
			if err != nil {
				return nil, err
			}
			applyPAXGlobalRecords(&r.global, parsePAXRecords(data))
			continue
		case tfGNULongName, tfGNULongName2:
			data, err := r.readFullPayload(h.effectiveSize())
			if err != nil {
				return nil, err
			}
			r.pendingLongName, r.hasLongName = trimNUL(data), true
			continue
		case tfGNULongLink:
			data, err := r.readFullPayload(h.effectiveSize())
			if err != nil {
				return nil, err
			}
			r.pendingLongLink, r.hasLongLink = trimNUL(data), true
			continue
		}

		r.global.applyTo(h)
		if r.pendingLocal != nil {
			applyPAXRecords(h, r.pendingLocal)
			r.pendingLocal = nil
		}
		if r.hasLongName {
			h.longName, h.hasLongName = r.pendingLongName, true
			r.hasLongName = false
		}
		if r.hasLongLink {
			h.longLinkName, h.hasLongLink = r.pendingLongLink, true
			r.hasLongLink = false
		}

		entry, err := r.buildEntry(h)
		if err != nil {
			return nil, err
		}
		r.cur = entry
		r.opts.rec.EntryYielded(context.Background())
		return entry, nil
	}
}

func (r *Reader) buildEntry(h *rawHeader) (*Entry, error) {
	name := h.effectiveName()
	typ, name := classify(h.typeflag, name)
	size := h.effectiveSize()
	if size < 0 {
		return nil, codecerr.New(codecerr.ErrBadNumeric, "tar: negative size for %q", name)
	}
	pad := padLen(size)

	payload := &payloadReader{br: r.br, remaining: size, pad: pad}
	cancel := func() error {
		skip := payload.remaining + payload.pad
		payload.remaining, payload.pad = 0, 0
		if skip > 0 {
			if left := r.br.Skip(int(skip)); left > 0 {
				return codecerr.ErrUnexpectedEOF
			}
		}
		return nil
	}

	return &Entry{
		Name:     name,
		Type:     typ,
		Size:     size,
		ModTime:  secondsToTime(h.effectiveMtime()),
		Mode:     h.effectiveMode(),
		Uid:      h.effectiveUid(),
		Gid:      h.effectiveGid(),
		Uname:    h.effectiveUname(),
		Gname:    h.effectiveGname(),
		Devmajor: h.devmajor,
		Devminor: h.devminor,
		LinkName: h.effectiveLinkname(),
		Payload:  facade.New(payload, cancel),
	}, nil
}

// classify maps a typeflag to an EntryType, applying the
// OLD_FILE-ending-in-"/" rewrite to DIRECTORY (spec.md §4.5).
func classify(tf byte, name string) (EntryType, string) {
	switch tf {
	case tfRegularOld, tfRegular:
		if strings.HasSuffix(name, "/") {
			return TypeDirectory, name
		}
		return TypeFile, name
	case tfLink:
		return TypeLink, name
	case tfSymlink:
		return TypeSymlink, name
	case tfDirectory:
		return TypeDirectory, name
	default:
		// Recognised-but-uncommon typeflags (char/block/fifo/contiguous)
		// are surfaced as plain files; their payload framing is identical.
		return TypeFile, name
	}
}

// readFullPayload reads size bytes (rounded up to the next block) and
// returns the unpadded content. Used for PAX and GNU extension
// records, which are always small enough to buffer whole.
func (r *Reader) readFullPayload(size int64) ([]byte, error) {
	if size < 0 {
		return nil, codecerr.New(codecerr.ErrBadNumeric, "tar: negative extension record size")
	}
	buf := make([]byte, 0, size)
	var remaining = size
	for remaining > 0 {
		c, err := r.br.Pull(int(remaining))
		if err != nil {
			return nil, codecerr.ErrUnexpectedEOF
		}
		buf = append(buf, c...)
		remaining -= int64(len(c))
	}
	if pad := padLen(size); pad > 0 {
		if left := r.br.Skip(int(pad)); left > 0 {
			return nil, codecerr.ErrUnexpectedEOF
		}
	}
	return buf, nil
}

func padLen(size int64) int64 {
	rem := size % blockSize
	if rem == 0 {
		return 0
	}
	return blockSize - rem
}

func trimNUL(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// payloadReader is the lazy byte sequence backing a decoded Entry: it
// hands out up to `remaining` bytes pulled straight from the shared
// blockio.Reader buffer, then skips the `pad` bytes up to the next
// block boundary before reporting io.EOF.
type payloadReader struct {
	br        *blockio.Reader
	remaining int64
	pad       int64
}

func (p *payloadReader) Read(buf []byte) (int, error) {
	if p.remaining <= 0 {
		if p.pad > 0 {
			left := p.br.Skip(int(p.pad))
			p.pad = 0
			if left > 0 {
				return 0, codecerr.ErrUnexpectedEOF
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
