package tar_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kitten/multitars/bytesource"
	"github.com/kitten/multitars/tar"
)

func writeArchive(t *testing.T, entries []*tar.Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, e := range entries {
		require.NoError(t, w.WriteEntry(e))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// decodeAll reads every entry of data over the given chunk size and
// returns their metadata plus fully-drained payloads.
func decodeAll(t *testing.T, data []byte, chunkSize int) []*tar.Entry {
	t.Helper()
	src := bytesource.FromReader(bytes.NewReader(data), chunkSize)
	r := tar.NewReader(src)
	var out []*tar.Entry
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := e.AsBytes()
		require.NoError(t, err)
		e.Payload = bytes.NewReader(b) // stash for assertion convenience
		out = append(out, e)
	}
	return out
}

func TestRoundTripBasic(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	entries := []*tar.Entry{
		tar.NewEntry("hello.txt", tar.TypeFile, 13, mtime, strings.NewReader("hello, world!")),
		tar.NewEntry("dir/", tar.TypeDirectory, 0, mtime, nil),
		tar.NewEntry("link-to-hello", tar.TypeLink, 0, mtime, nil),
	}
	entries[2].LinkName = "hello.txt"

	data := writeArchive(t, entries)

	for _, chunkSize := range []int{1, 7, 512, 1024, 65536} {
		t.Run(itoa(chunkSize), func(t *testing.T) {
			got := decodeAll(t, data, chunkSize)
			require.Len(t, got, 3)
			require.Equal(t, "hello.txt", got[0].Name)
			require.Equal(t, tar.TypeFile, got[0].Type)
			b, err := io.ReadAll(got[0].Payload)
			require.NoError(t, err)
			require.Equal(t, "hello, world!", string(b))

			require.Equal(t, "dir/", got[1].Name)
			require.Equal(t, tar.TypeDirectory, got[1].Type)

			require.Equal(t, "link-to-hello", got[2].Name)
			require.Equal(t, tar.TypeLink, got[2].Type)
			require.Equal(t, "hello.txt", got[2].LinkName)
		})
	}
}

func TestRoundTripLongNames(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	for _, n := range []int{100, 101, 155, 200, 400, 600} {
		name := strings.Repeat("a", n-4) + "/b.c"
		if len(name) != n {
			name = strings.Repeat("a", n)
		}
		t.Run(itoa(n), func(t *testing.T) {
			e := tar.NewEntry(name, tar.TypeFile, 4, mtime, strings.NewReader("data"))
			data := writeArchive(t, []*tar.Entry{e})
			got := decodeAll(t, data, 512)
			require.Len(t, got, 1)
			require.Equal(t, name, got[0].Name)
			b, _ := io.ReadAll(got[0].Payload)
			require.Equal(t, "data", string(b))
		})
	}
}

func TestRoundTripLongLinkname(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	link := strings.Repeat("l", 300)
	e := tar.NewEntry("sym", tar.TypeSymlink, 0, mtime, nil)
	e.LinkName = link
	data := writeArchive(t, []*tar.Entry{e})
	got := decodeAll(t, data, 512)
	require.Len(t, got, 1)
	require.Equal(t, link, got[0].LinkName)
	require.Equal(t, tar.TypeSymlink, got[0].Type)
}

func TestSkippingEntries(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	entries := []*tar.Entry{
		tar.NewEntry("a.txt", tar.TypeFile, 5, mtime, strings.NewReader("aaaaa")),
		tar.NewEntry("b.txt", tar.TypeFile, 5, mtime, strings.NewReader("bbbbb")),
		tar.NewEntry("c.txt", tar.TypeFile, 5, mtime, strings.NewReader("ccccc")),
	}
	data := writeArchive(t, entries)

	src := bytesource.FromReader(bytes.NewReader(data), 37)
	r := tar.NewReader(src)

	var names []string
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, e.Name)
		// Never read the payload: Next must skip it for us.
	}
	require.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
}

func TestZeroLengthEntry(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	e := tar.NewEntry("empty.txt", tar.TypeFile, 0, mtime, strings.NewReader(""))
	data := writeArchive(t, []*tar.Entry{e})
	got := decodeAll(t, data, 512)
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].Size)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
