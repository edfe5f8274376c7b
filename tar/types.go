// Package tar implements the streaming tar codec described in
// spec.md §4.4–§4.6: USTAR headers with GNU long-name/long-link and
// PAX local/global extensions, decoded and encoded over a
// blockio.Reader/Writer pair rather than a seekable file.
package tar

import (
	"encoding/json"
	"io"
	"time"

	"github.com/kitten/multitars/facade"
)

// blockSize is the fixed USTAR block size (spec.md §4.4); it is also
// the blockio.Reader block size this package always uses.
const blockSize = 512

// Header field byte offsets within a 512-byte USTAR block.
const (
	offName     = 0
	lenName     = 100
	offMode     = 100
	lenMode     = 8
	offUid      = 108
	lenUid      = 8
	offGid      = 116
	lenGid      = 8
	offSize     = 124
	lenSize     = 12
	offMtime    = 136
	lenMtime    = 12
	offChksum   = 148
	lenChksum   = 8
	offTypeflag = 156
	offLinkname = 157
	lenLinkname = 100
	offMagic    = 257
	lenMagic    = 6
	offVersion  = 263
	lenVersion  = 2
	offUname    = 265
	lenUname    = 32
	offGname    = 297
	lenGname    = 32
	offDevmajor = 329
	lenDevmajor = 8
	offDevminor = 337
	lenDevminor = 8
	offPrefix   = 345
	lenPrefix   = 155
)

const (
	magicUSTAR = "ustar\x00"
	versionVal = "00"
)

// Typeflag byte values (spec.md §4.5).
const (
	tfRegularOld   = 0
	tfRegular      = '0'
	tfLink         = '1'
	tfSymlink      = '2'
	tfChar         = '3'
	tfBlock        = '4'
	tfDirectory    = '5'
	tfFifo         = '6'
	tfContiguous   = '7'
	tfPAXLocal     = 'x'
	tfPAXGlobal    = 'g'
	tfGNULongName  = 'L'
	tfGNULongName2 = 'N'
	tfGNULongLink  = 'K'
)

// EntryType classifies a decoded/encoded tar entry (spec.md §3).
type EntryType int

const (
	TypeFile EntryType = iota
	TypeLink
	TypeSymlink
	TypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeLink:
		return "link"
	case TypeSymlink:
		return "symlink"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// rawHeader is the as-decoded 512-byte header plus the transient
// overrides PAX and GNU long-name/long-link records contribute
// (spec.md §3). It never escapes this package; Entry carries only the
// effective, already-resolved fields.
type rawHeader struct {
	name     string
	prefix   string
	linkname string
	mode     int64
	uid, gid int64
	size     int64
	mtime    int64 // seconds
	typeflag byte
	uname    string
	gname    string
	devmajor int64
	devminor int64

	longName     string
	hasLongName  bool
	longLinkName string
	hasLongLink  bool

	paxName     string
	hasPaxName  bool
	paxLinkName string
	hasPaxLink  bool
	paxSize     int64
	hasPaxSize  bool
	paxUid      int64
	hasPaxUid   bool
	paxGid      int64
	hasPaxGid   bool
	paxMode     int64
	hasPaxMode  bool
	paxMtime    int64
	hasPaxMtime bool
	paxUname    string
	hasPaxUname bool
	paxGname    string
	hasPaxGname bool
}

// effectiveName resolves spec.md §3's "Effective name" formula.
func (h *rawHeader) effectiveName() string {
	if h.hasLongName {
		return h.longName
	}
	if h.hasPaxName {
		return h.paxName
	}
	if h.prefix != "" {
		return h.prefix + "/" + h.name
	}
	return h.name
}

func (h *rawHeader) effectiveLinkname() string {
	if h.hasLongLink {
		return h.longLinkName
	}
	if h.hasPaxLink {
		return h.paxLinkName
	}
	return h.linkname
}

func (h *rawHeader) effectiveSize() int64 {
	if h.hasPaxSize {
		return h.paxSize
	}
	return h.size
}

func (h *rawHeader) effectiveUid() int64 {
	if h.hasPaxUid {
		return h.paxUid
	}
	return h.uid
}

func (h *rawHeader) effectiveGid() int64 {
	if h.hasPaxGid {
		return h.paxGid
	}
	return h.gid
}

func (h *rawHeader) effectiveMode() int64 {
	if h.hasPaxMode {
		return h.paxMode
	}
	return h.mode
}

func (h *rawHeader) effectiveMtime() int64 {
	if h.hasPaxMtime {
		return h.paxMtime
	}
	return h.mtime
}

func (h *rawHeader) effectiveUname() string {
	if h.hasPaxUname {
		return h.paxUname
	}
	return h.uname
}

func (h *rawHeader) effectiveGname() string {
	if h.hasPaxGname {
		return h.paxGname
	}
	return h.gname
}

// globalExtended is the persistent PAX-global state that contributes
// defaults to every subsequent header (spec.md §3).
type globalExtended struct {
	name     string
	hasName  bool
	linkName string
	hasLink  bool
	size     int64
	hasSize  bool
	uid      int64
	hasUid   bool
	gid      int64
	hasGid   bool
	mode     int64
	hasMode  bool
	mtime    int64
	hasMtime bool
	uname    string
	hasUname bool
	gname    string
	hasGname bool
}

func (g *globalExtended) applyTo(h *rawHeader) {
	if g.hasName {
		h.paxName, h.hasPaxName = g.name, true
	}
	if g.hasLink {
		h.paxLinkName, h.hasPaxLink = g.linkName, true
	}
	if g.hasSize {
		h.paxSize, h.hasPaxSize = g.size, true
	}
	if g.hasUid {
		h.paxUid, h.hasPaxUid = g.uid, true
	}
	if g.hasGid {
		h.paxGid, h.hasPaxGid = g.gid, true
	}
	if g.hasMode {
		h.paxMode, h.hasPaxMode = g.mode, true
	}
	if g.hasMtime {
		h.paxMtime, h.hasPaxMtime = g.mtime, true
	}
	if g.hasUname {
		h.paxUname, h.hasPaxUname = g.uname, true
	}
	if g.hasGname {
		h.paxGname, h.hasPaxGname = g.gname, true
	}
}

// Entry is a single decoded tar entry: metadata by value plus a
// one-shot lazy byte stream (spec.md §3 TarEntry).
type Entry struct {
	Name     string
	Type     EntryType
	Size     int64
	ModTime  time.Time
	Mode     int64
	Uid, Gid int64
	Uname    string
	Gname    string
	Devmajor int64
	Devminor int64
	LinkName string

	// Payload is the entry's lazy byte sequence. On decode it is a
	// *facade.Facade tied to the underlying BlockReader; on encode it
	// is whatever io.Reader the caller supplied to NewEntry. nil is
	// valid and means "no content".
	Payload io.Reader
}

func secondsToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// NewEntry builds an Entry to hand to a Writer. payload may be nil for
// entries with no content (typical for LINK/SYMLINK/DIRECTORY).
func NewEntry(name string, typ EntryType, size int64, modTime time.Time, payload io.Reader) *Entry {
	return &Entry{Name: name, Type: typ, Size: size, ModTime: modTime, Payload: payload}
}

// Read implements io.Reader by delegating to the entry's payload.
func (e *Entry) Read(p []byte) (int, error) {
	if e.Payload == nil {
		return 0, io.EOF
	}
	return e.Payload.Read(p)
}

// AsBytes reads the payload to completion.
func (e *Entry) AsBytes() ([]byte, error) {
	if f, ok := e.Payload.(*facade.Facade); ok {
		return f.AsBytes()
	}
	if e.Payload == nil {
		return nil, nil
	}
	return io.ReadAll(e.Payload)
}

// AsText reads the payload to completion as UTF-8 text.
func (e *Entry) AsText() (string, error) {
	if f, ok := e.Payload.(*facade.Facade); ok {
		return f.AsText()
	}
	b, err := e.AsBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AsJSON reads the payload to completion and unmarshals it into v.
func (e *Entry) AsJSON(v interface{}) error {
	if f, ok := e.Payload.(*facade.Facade); ok {
		return f.AsJSON(v)
	}
	b, err := e.AsBytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Close cancels the payload if it has not been fully drained. Decoded
// entries route this through the pipeline's skip-and-advance protocol
// (spec.md §4.5 Skipping); encoded entries have nothing to cancel.
func (e *Entry) Close() error {
	if f, ok := e.Payload.(*facade.Facade); ok {
		return f.Close()
	}
	return nil
}
