package tar

import "strconv"

// parseNumeric decodes a tar numeric field per spec.md §4.4: classic
// zero/space-padded octal terminated by NUL or space, or GNU base-256
// (leading byte 0x80 positive, 0xFF negative). Parse failures yield 0
// rather than an error — numeric fields are advisory enough that a
// corrupt one shouldn't abort the whole header.
func parseNumeric(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	if b[0]&0x80 != 0 {
		return parseBase256(b)
	}
	return parseOctal(b)
}

func parseOctal(b []byte) int64 {
	// Trim trailing NUL/space and any leading padding.
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	start := 0
	for start < end && (b[start] == 0 || b[start] == ' ') {
		start++
	}
	if start == end {
		return 0
	}
	v, err := strconv.ParseInt(string(b[start:end]), 8, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseBase256 decodes a GNU base-256 numeric field. It relies on the
// identity -a-1 == ^a to handle negative values: a leading 0xFF byte
// (spec.md §4.4) flips the sign; every byte is XORed with the same
// mask before accumulating, and the whole accumulator is inverted back
// at the end if the value was negative.
func parseBase256(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var inv byte
	if b[0] == 0xFF {
		inv = 0xFF
	}
	var x uint64
	for i, c := range b {
		c ^= inv
		if i == 0 {
			c &= 0x7F // sign-marker bit, not part of the magnitude
		}
		x = x<<8 | uint64(c)
	}
	if inv == 0xFF {
		x = ^x
	}
	return int64(x)
}

// encodeNumeric writes v into field (length len(field)) as octal with
// a trailing space-NUL if it fits, otherwise as GNU base-256.
func encodeNumeric(field []byte, v int64) {
	if v >= 0 && fitsOctal(field, v) {
		encodeOctal(field, v)
		return
	}
	encodeBase256(field, v)
}

func fitsOctal(field []byte, v int64) bool {
	// Reserve the trailing space and NUL; octal digits use the rest.
	maxDigits := len(field) - 2
	s := strconv.FormatInt(v, 8)
	return len(s) <= maxDigits
}

func encodeOctal(field []byte, v int64) {
	s := strconv.FormatInt(v, 8)
	for i := range field {
		field[i] = '0'
	}
	// Right-align the digits, reserving the final two bytes as space, NUL.
	start := len(field) - 2 - len(s)
	copy(field[start:len(field)-2], s)
	field[len(field)-2] = ' '
	field[len(field)-1] = 0
}

func encodeBase256(field []byte, v int64) {
	n := len(field)
	u := uint64(v)
	if v < 0 {
		u = uint64(-(v + 1))
	}
	for i := n - 1; i >= 1; i-- {
		field[i] = byte(u)
		u >>= 8
	}
	if v < 0 {
		for i := 1; i < n; i++ {
			field[i] = ^field[i]
		}
		field[0] = 0xFF
	} else {
		field[0] = 0x80
	}
}
