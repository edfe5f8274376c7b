/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package header implements the case-insensitive header map and the
// CRLF-line header reader shared by multipart part parsing (spec.md
// §3 MultipartHeaders, §4.7.b). Adapted from badu-http/hdr, trimmed to
// the subset a pure codec needs: no Date/cookie handling, no response
// Write path, no wire serialization at all (the multipart writer
// formats its three header lines itself).
package header

// Header is a case-insensitive map of header name to raw string
// values, preserving every header the wire actually carried (spec.md
// §3: "the recognized set ... is consumed by the pipeline; others are
// surfaced").
type Header map[string][]string

// Well-known header names, canonicalized.
const (
	ContentDisposition = "Content-Disposition"
	ContentType        = "Content-Type"
	ContentLength      = "Content-Length"
)

// Add appends value to any existing values associated with key.
func (h Header) Add(key, value string) {
	key = CanonicalKey(key)
	h[key] = append(h[key], value)
}

// Set replaces any existing values associated with key with the single
// given value.
func (h Header) Set(key, value string) {
	h[CanonicalKey(key)] = []string{value}
}

// Get returns the first value associated with key, or "" if absent.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	v := h[CanonicalKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Del removes all values associated with key.
func (h Header) Del(key string) {
	delete(h, CanonicalKey(key))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	h2 := make(Header, len(h))
	for k, vv := range h {
		vv2 := make([]string, len(vv))
		copy(vv2, vv)
		h2[k] = vv2
	}
	return h2
}
