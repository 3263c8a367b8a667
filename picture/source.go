package picture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Source is a read-only handle on a subtitle stream.
//
// Reads are serialized by a mutex, so a Source backed by a file can be
// shared, but no two reads are ever in flight against the same handle.
// A preloaded Source reads from memory and is safe for parallel decoding.
type Source struct {
	mu     sync.Mutex
	r      io.ReaderAt
	size   int64
	closer io.Closer
	name   string
	data   []byte // non-nil for preloaded sources
}

// NewSource wraps an in-memory stream.
func NewSource(data []byte) *Source {
	return &Source{r: bytes.NewReader(data), size: int64(len(data)), data: data}
}

// NewReaderSource wraps r, which holds size bytes.
func NewReaderSource(r io.ReaderAt, size int64) *Source {
	return &Source{r: r, size: size}
}

// OpenSource opens a file. The file is read on demand.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("picture: open source: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("picture: stat source: %w", err)
	}
	return &Source{r: f, size: fi.Size(), closer: f, name: path}, nil
}

// LoadSource reads a whole file into memory.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("picture: load source: %w", err)
	}
	s := NewSource(data)
	s.name = path
	return s, nil
}

// Name returns the file name the source was opened from, if any.
func (s *Source) Name() string {
	return s.name
}

// Size returns the stream size in bytes.
func (s *Source) Size() int64 {
	return s.size
}

// Preloaded reports whether the whole stream is held in memory.
func (s *Source) Preloaded() bool {
	return s.data != nil
}

// ReadAt reads len(p) bytes at off. A short read at the end of the stream
// returns ErrTruncated.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		n := 0
		if off >= 0 && off < s.size {
			n, _ = s.readAt(p[:s.size-off], off)
		}
		return n, fmt.Errorf("%w: %d bytes at %d, stream size %d", ErrTruncated, len(p), off, s.size)
	}
	return s.readAt(p, off)
}

func (s *Source) readAt(p []byte, off int64) (int, error) {
	if s.data != nil {
		return copy(p, s.data[off:]), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.r.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// Bytes returns n bytes at off. Preloaded sources return a sub-slice of
// their buffer that must not be modified.
func (s *Source) Bytes(off, n int64) ([]byte, error) {
	if s.data != nil && off >= 0 && n >= 0 && off+n <= s.size {
		return s.data[off : off+n : off+n], nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length at %d", ErrTruncated, off)
	}
	p := make([]byte, n)
	if _, err := s.ReadAt(p, off); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFragments materializes a fragment list, one slice per fragment.
func (s *Source) ReadFragments(frags []Fragment) ([][]byte, error) {
	out := make([][]byte, len(frags))
	for i, f := range frags {
		b, err := s.Bytes(f.Offset, f.Size)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Preload returns an in-memory copy of the source. A preloaded source is
// returned unchanged.
func (s *Source) Preload() (*Source, error) {
	if s.data != nil {
		return s, nil
	}
	data := make([]byte, s.size)
	if _, err := s.ReadAt(data, 0); err != nil {
		return nil, err
	}
	p := NewSource(data)
	p.name = s.name
	return p, nil
}

// Close releases the underlying file, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
