// Package codecerr defines the fatal error kinds shared by the tar and
// multipart pipelines.
package codecerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel kinds. Compare with errors.Is, never by string match.
var (
	// ErrUnexpectedEOF: the source ended while more bytes were required
	// (a header, a PAX payload, a sized body, a boundary).
	ErrUnexpectedEOF = errors.New("codec: unexpected end of input")
	// ErrBadHeader: an invalid tar header block, a multipart header
	// line missing ':', or a Content-Disposition that isn't form-data.
	ErrBadHeader = errors.New("codec: malformed header")
	// ErrBadChecksum: a tar block with an unrecognised typeflag and an
	// invalid checksum.
	ErrBadChecksum = errors.New("codec: bad header checksum")
	// ErrLimitExceeded: a multipart preamble or header section exceeded
	// its documented cap.
	ErrLimitExceeded = errors.New("codec: limit exceeded")
	// ErrBadBoundary: the expected trailer bytes did not match after a
	// sized multipart part.
	ErrBadBoundary = errors.New("codec: boundary mismatch")
	// ErrBadNumeric: a tar size value isn't a safe non-negative integer
	// at encode time.
	ErrBadNumeric = errors.New("codec: invalid numeric field")
	// ErrBadPrecondition: a boundary pattern longer than the block size,
	// or a pushback past the reader's capacity.
	ErrBadPrecondition = errors.New("codec: precondition violated")
)

// codecError is a concrete error carrying a message plus the sentinel
// kind it should compare equal to via errors.Is.
type codecError struct {
	kind error
	msg  string
}

func (e *codecError) Error() string { return e.msg }
func (e *codecError) Is(target error) bool {
	return target == e.kind
}
func (e *codecError) Unwrap() error { return e.kind }

// New builds an error of the given kind with a formatted message. The
// returned error reports true for errors.Is(err, kind).
func New(kind error, format string, args ...interface{}) error {
	return &codecError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrapf attaches a stack-bearing wrap (via github.com/pkg/errors) with
// extra context on top of an existing codec error, preserving
// errors.Is against its kind.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, format, args...)
}
