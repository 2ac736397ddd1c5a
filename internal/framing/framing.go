// Package framing implements the optional LZ4 frame envelope around a
// serialized Grid: presence is sniffed by the reader from the standard
// LZ4 frame magic number, and the writer chooses compressed or
// uncompressed output based on what the caller asked for.
package framing

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Magic is the little-endian LZ4 frame magic number.
const Magic = 0x184D2204

// Decode returns a reader that transparently decompresses an LZ4 frame
// if one is present at the start of r, or returns r itself (wrapped in a
// small buffer) otherwise.
func Decode(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == 4 && binary.LittleEndian.Uint32(head) == Magic {
		return lz4.NewReader(br), nil
	}
	return br, nil
}

// nopWriteCloser adapts an io.Writer that needs no finalization into an
// io.WriteCloser.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Encode returns a writer that frames its output in LZ4 when compress is
// true, or writes straight through to w otherwise. Callers must Close
// the returned writer to flush the LZ4 frame trailer.
func Encode(w io.Writer, compress bool) io.WriteCloser {
	if compress {
		return lz4.NewWriter(w)
	}
	return nopWriteCloser{w}
}
