package multipart_test

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kitten/multitars/bytesource"
	"github.com/kitten/multitars/multipart"
)

func writeBody(t *testing.T, parts []*multipart.Part, boundary string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf, multipart.WithBoundary(boundary))
	for _, p := range parts {
		require.NoError(t, w.WritePart(p))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decodeAll(t *testing.T, data []byte, boundary string, chunkSize int, skipFirst bool) []*multipart.Part {
	t.Helper()
	src := bytesource.FromReader(bytes.NewReader(data), chunkSize)
	r, err := multipart.NewReaderWithBoundary(src, boundary)
	require.NoError(t, err)

	var out []*multipart.Part
	first := true
	for {
		p, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if skipFirst && first {
			first = false
			out = append(out, p)
			continue // don't read the payload; Next() must skip it
		}
		b, err := p.AsBytes()
		require.NoError(t, err)
		p.Payload = bytes.NewReader(b)
		out = append(out, p)
	}
	return out
}

func TestRoundTripSizedAndUnsized(t *testing.T) {
	parts := []*multipart.Part{
		multipart.NewPart("field1", "", "", 5, strings.NewReader("value")),
		multipart.NewPart("file1", "hello.txt", "text/plain", -1, strings.NewReader("file contents here")),
	}
	data := writeBody(t, parts, "TESTBOUNDARY123")

	for _, chunkSize := range []int{3, 16, 64, 4096} {
		t.Run(itoa(chunkSize), func(t *testing.T) {
			got := decodeAll(t, data, "TESTBOUNDARY123", chunkSize, false)
			require.Len(t, got, 2)

			require.Equal(t, "field1", got[0].Name)
			require.False(t, got[0].IsFile())
			b0, err := io.ReadAll(got[0].Payload)
			require.NoError(t, err)
			require.Equal(t, "value", string(b0))

			require.Equal(t, "file1", got[1].Name)
			require.Equal(t, "hello.txt", got[1].FileName)
			require.True(t, got[1].IsFile())
			require.Equal(t, "text/plain", got[1].ContentType)
			b1, err := io.ReadAll(got[1].Payload)
			require.NoError(t, err)
			require.Equal(t, "file contents here", string(b1))
		})
	}
}

func TestSkipThenReadNextPart(t *testing.T) {
	parts := []*multipart.Part{
		multipart.NewPart("a", "", "", 1, strings.NewReader("A")),
		multipart.NewPart("b", "", "", -1, strings.NewReader("BB")),
		multipart.NewPart("c", "", "", 1, strings.NewReader("C")),
	}
	data := writeBody(t, parts, "B")

	got := decodeAll(t, data, "B", 23, true)
	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].Name)
	require.Equal(t, "b", got[1].Name)
	b, err := io.ReadAll(got[1].Payload)
	require.NoError(t, err)
	require.Equal(t, "BB", string(b))
	require.Equal(t, "c", got[2].Name)
	c, err := io.ReadAll(got[2].Payload)
	require.NoError(t, err)
	require.Equal(t, "C", string(c))
}

func TestSpecialFilenameQuoting(t *testing.T) {
	name := `weird "name" \with\ stuff` + "\nand a newline"
	p := multipart.NewPart("file", name, "application/octet-stream", 1, strings.NewReader("x"))
	data := writeBody(t, []*multipart.Part{p}, "BND")

	got := decodeAll(t, data, "BND", 4096, false)
	require.Len(t, got, 1)
	require.Equal(t, name, got[0].FileName)
}

func TestZeroLengthPart(t *testing.T) {
	p := multipart.NewPart("empty", "", "", 0, strings.NewReader(""))
	data := writeBody(t, []*multipart.Part{p}, "Z")
	got := decodeAll(t, data, "Z", 512, false)
	require.Len(t, got, 1)
	b, err := io.ReadAll(got[0].Payload)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestBoundarySearchAcrossArbitraryChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(500)
		body := make([]byte, n)
		rng.Read(body)
		// The payload is not filtered: a random 7-byte "\r\n--XYZ" inside
		// at most 500 random bytes is vanishingly unlikely.
		p := multipart.NewPart("f", "", "", -1, bytes.NewReader(body))
		data := writeBody(t, []*multipart.Part{p}, "XYZ")

		chunk := 1 + rng.Intn(64)
		got := decodeAll(t, data, "XYZ", chunk, false)
		require.Len(t, got, 1)
		b, err := io.ReadAll(got[0].Payload)
		require.NoError(t, err)
		require.Equal(t, body, b)
	}
}

func TestMissingNameAndFilenameIsFatal(t *testing.T) {
	body := "--BND\r\n" +
		"Content-Disposition: form-data\r\n" +
		"\r\n" +
		"x\r\n" +
		"--BND--\r\n"
	src := bytesource.FromReader(strings.NewReader(body), 16)
	r, err := multipart.NewReaderWithBoundary(src, "BND")
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
