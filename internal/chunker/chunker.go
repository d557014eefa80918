package chunker

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is used when a Chunker is created with a non-positive size
const DefaultChunkSize = 64 * 1024

// ErrLimitExceeded is returned by a LimitReader once its bound is crossed
var ErrLimitExceeded = errors.New("stream exceeds size limit")

// Chunker moves bytes between streams in fixed-size chunks
type Chunker struct {
	chunkSize int64
}

// NewChunker creates a new chunker with the specified chunk size
func NewChunker(chunkSize int64) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{
		chunkSize: chunkSize,
	}
}

// ChunkSize returns the chunk size in bytes
func (c *Chunker) ChunkSize() int64 {
	return c.chunkSize
}

// Copy reads src one chunk at a time and writes each chunk to dst before
// reading the next. It stops at the first read or write error, or as soon
// as ctx is done.
func (c *Chunker) Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buffer := make([]byte, c.chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buffer)
		if n > 0 {
			w, werr := dst.Write(buffer[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}

		if rerr == io.EOF {
			return written, nil
		} else if rerr != nil {
			return written, rerr
		}
	}
}

// LimitReader returns a reader that yields at most n bytes of r and fails
// with ErrLimitExceeded if r has more.
func LimitReader(r io.Reader, n int64) io.Reader {
	return &limitReader{r: r, remaining: n}
}

type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrLimitExceeded
	}
	// Allow one extra byte so an overflow is observed rather than truncated
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n + int(l.remaining), ErrLimitExceeded
	}
	return n, err
}
