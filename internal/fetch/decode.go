package fetch

import (
	"bufio"
	"compress/gzip"
	"io"
)

// newDecodingReader returns a reader that transparently gunzips r when it
// starts with the gzip magic bytes, and r unchanged otherwise.
func newDecodingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return br
	}
	return zr
}
