package chunker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	writes [][]byte
	failAt int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.failAt > 0 && len(w.writes) == w.failAt {
		return 0, errors.New("broken pipe")
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestCopyWritesBoundedChunks(t *testing.T) {
	src := bytes.Repeat([]byte("abcdefghij"), 10)
	w := &recordingWriter{}

	n, err := NewChunker(16).Copy(context.Background(), w, bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, int64(len(src)), n)

	var got []byte
	for _, chunk := range w.writes {
		assert.LessOrEqual(t, len(chunk), 16)
		got = append(got, chunk...)
	}
	assert.Equal(t, src, got)
}

func TestCopyStopsOnWriteError(t *testing.T) {
	w := &recordingWriter{failAt: 2}

	n, err := NewChunker(4).Copy(context.Background(), w, strings.NewReader("0123456789abcdef"))
	require.Error(t, err)
	assert.Equal(t, int64(8), n)
	assert.Len(t, w.writes, 2)
}

func TestCopyStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := NewChunker(4).Copy(ctx, io.Discard, strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestNewChunkerDefaultsSize(t *testing.T) {
	assert.Equal(t, int64(DefaultChunkSize), NewChunker(0).ChunkSize())
}

func TestLimitReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		wantErr bool
	}{
		{"under limit", "hello", 10, false},
		{"exactly at limit", "hello", 5, false},
		{"over limit", "hello world", 5, true},
		{"empty", "", 0, false},
		{"one over", "ab", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := io.ReadAll(LimitReader(strings.NewReader(tt.input), tt.limit))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrLimitExceeded)
				assert.LessOrEqual(t, int64(len(data)), tt.limit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(data))
		})
	}
}
