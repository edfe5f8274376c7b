package multipart

import (
	"encoding/json"
	"io"

	"github.com/kitten/multitars/facade"
	"github.com/kitten/multitars/header"
)

// defaultContentType is used when a part carries no Content-Type
// header of its own (spec.md §3 MultipartPart).
const defaultContentType = "application/octet-stream"

// Part is a single decoded or to-be-encoded multipart body part
// (spec.md §3 MultipartPart): form field metadata plus a one-shot lazy
// byte sequence, the same facade-composition shape as tar.Entry.
type Part struct {
	Name        string
	FileName    string
	ContentType string
	// Size is the declared payload length, or -1 if the part carried
	// no Content-Length and must be consumed via boundary search.
	Size   int64
	Header header.Header

	// Payload is the part's lazy byte sequence: a *facade.Facade on
	// decode, whatever io.Reader the caller supplied to NewPart on
	// encode.
	Payload io.Reader
}

// NewPart builds a Part to hand to a Writer. size may be -1 to emit
// the part without a Content-Length header (boundary-delimited only).
func NewPart(name, fileName, contentType string, size int64, payload io.Reader) *Part {
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Part{
		Name:        name,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		Header:      make(header.Header),
		Payload:     payload,
	}
}

// IsFile reports whether the part carries a filename parameter, i.e.
// came from a file input rather than a plain form field.
func (p *Part) IsFile() bool { return p.FileName != "" }

// Read implements io.Reader by delegating to the part's payload.
func (p *Part) Read(buf []byte) (int, error) {
	if p.Payload == nil {
		return 0, io.EOF
	}
	return p.Payload.Read(buf)
}

// AsBytes reads the payload to completion.
func (p *Part) AsBytes() ([]byte, error) {
	if f, ok := p.Payload.(*facade.Facade); ok {
		return f.AsBytes()
	}
	if p.Payload == nil {
		return nil, nil
	}
	return io.ReadAll(p.Payload)
}

// AsText reads the payload to completion as UTF-8 text.
func (p *Part) AsText() (string, error) {
	if f, ok := p.Payload.(*facade.Facade); ok {
		return f.AsText()
	}
	b, err := p.AsBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AsJSON reads the payload to completion and unmarshals it into v.
func (p *Part) AsJSON(v interface{}) error {
	if f, ok := p.Payload.(*facade.Facade); ok {
		return f.AsJSON(v)
	}
	b, err := p.AsBytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Close cancels the payload if it hasn't been fully drained, routing
// through the pipeline's entry-skipping protocol (spec.md §4.7 d/e).
func (p *Part) Close() error {
	if f, ok := p.Payload.(*facade.Facade); ok {
		return f.Close()
	}
	return nil
}
