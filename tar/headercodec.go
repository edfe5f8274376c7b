package tar

import (
	"bytes"

	"github.com/kitten/multitars/codecerr"
	"go.uber.org/zap"
)

// hasUSTARMagic reports whether block "looks like a header" per
// spec.md §4.4: "ustar" at offset 257 with byte 262 NUL or space.
func hasUSTARMagic(block []byte) bool {
	if len(block) < blockSize {
		return false
	}
	if string(block[257:262]) != "ustar" {
		return false
	}
	return block[262] == 0 || block[262] == ' '
}

func isAllZero(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}

// isKnownTypeflag reports the typeflags this package recognises; a bad
// checksum is tolerated on these and fatal on anything else
// (spec.md §4.4, §7 — the asymmetry is intentional, see DESIGN.md).
func isKnownTypeflag(tf byte) bool {
	switch tf {
	case tfRegularOld, tfRegular, tfLink, tfSymlink, tfChar, tfBlock,
		tfDirectory, tfFifo, tfContiguous,
		tfPAXLocal, tfPAXGlobal, tfGNULongName, tfGNULongName2, tfGNULongLink:
		return true
	default:
		return false
	}
}

// decodeBlock parses a 512-byte USTAR header block. Checksum
// mismatches are tolerated on a known typeflag and reported as
// codecerr.ErrBadChecksum otherwise.
func decodeBlock(block []byte, log *zap.Logger) (*rawHeader, error) {
	h := &rawHeader{
		name:     decodeString(block[offName : offName+lenName]),
		mode:     parseNumeric(block[offMode : offMode+lenMode]),
		uid:      parseNumeric(block[offUid : offUid+lenUid]),
		gid:      parseNumeric(block[offGid : offGid+lenGid]),
		size:     parseNumeric(block[offSize : offSize+lenSize]),
		mtime:    parseNumeric(block[offMtime : offMtime+lenMtime]),
		typeflag: block[offTypeflag],
		linkname: decodeString(block[offLinkname : offLinkname+lenLinkname]),
		uname:    decodeString(block[offUname : offUname+lenUname]),
		gname:    decodeString(block[offGname : offGname+lenGname]),
		devmajor: parseNumeric(block[offDevmajor : offDevmajor+lenDevmajor]),
		devminor: parseNumeric(block[offDevminor : offDevminor+lenDevminor]),
		prefix:   decodeString(block[offPrefix : offPrefix+lenPrefix]),
	}

	want := checksum(block)
	got := parseOctal(block[offChksum : offChksum+lenChksum])
	if want != got {
		if !isKnownTypeflag(h.typeflag) {
			return nil, codecerr.New(codecerr.ErrBadChecksum,
				"tar: bad checksum on unrecognised typeflag %q (want %d, got %d)", h.typeflag, want, got)
		}
		// Tolerated: real-world archives occasionally carry a bad
		// checksum on an otherwise-valid entry.
		log.Debug("tar: tolerating bad checksum", zap.Int64("want", want), zap.Int64("got", got), zap.Uint8("typeflag", h.typeflag))
	}
	return h, nil
}

// checksum computes the 8-bit sum of block treating the checksum
// field as eight spaces (spec.md §4.4).
func checksum(block []byte) int64 {
	var sum int64 = 8 * 0x20
	for i, b := range block {
		if i >= offChksum && i < offChksum+lenChksum {
			continue
		}
		sum += int64(b)
	}
	return sum
}

// decodeString reads up to the first NUL (or the field end) and
// interprets the bytes as UTF-8, lossily (spec.md §4.4).
func decodeString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// encodeString writes s into field, truncated to fit, NUL-padding the
// remainder.
func encodeString(field []byte, s string) {
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
}

// encodeBlock renders a full 512-byte USTAR header block for the
// given fields; the checksum is computed and written last.
func encodeBlock(name, linkname, prefix, uname, gname string, mode, uid, gid, size, mtime, devmajor, devminor int64, typeflag byte) []byte {
	block := make([]byte, blockSize)
	encodeString(block[offName:offName+lenName], name)
	encodeNumeric(block[offMode:offMode+lenMode], mode)
	encodeNumeric(block[offUid:offUid+lenUid], uid)
	encodeNumeric(block[offGid:offGid+lenGid], gid)
	encodeNumeric(block[offSize:offSize+lenSize], size)
	encodeNumeric(block[offMtime:offMtime+lenMtime], mtime)
	block[offTypeflag] = typeflag
	encodeString(block[offLinkname:offLinkname+lenLinkname], linkname)
	copy(block[offMagic:offMagic+lenMagic], magicUSTAR)
	copy(block[offVersion:offVersion+lenVersion], versionVal)
	encodeString(block[offUname:offUname+lenUname], uname)
	encodeString(block[offGname:offGname+lenGname], gname)
	encodeNumeric(block[offDevmajor:offDevmajor+lenDevmajor], devmajor)
	encodeNumeric(block[offDevminor:offDevminor+lenDevminor], devminor)
	encodeString(block[offPrefix:offPrefix+lenPrefix], prefix)

	for i := offChksum; i < offChksum+lenChksum; i++ {
		block[i] = ' '
	}
	sum := checksum(block)
	// 6 octal digits, NUL, space — the conventional USTAR checksum
	// rendering.
	digits := []byte(paddedOctal(sum, 6))
	copy(block[offChksum:offChksum+6], digits)
	block[offChksum+6] = 0
	block[offChksum+7] = ' '
	return block
}

func paddedOctal(v int64, width int) string {
	s := octalString(v)
	for len(s) < width {
		s = "0" + s
	}
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return s
}

func octalString(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [32]byte
	i := len(buf)
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%8)
		u /= 8
	}
	return string(buf[i:])
}
